/*
包 store 提供迁移条目（模板、任务、脚本、服务器）的通用持久化。

所有条目保存在 items 表中，以 (schema_name, id) 为主键，字段以 JSON 存储。
写入前按 Registry 校验必填字段、字段类型、引用存在性与允许的字面量，
校验失败时不写入并在 CreateResult 中返回错误列表。

  - Store：Create（upsert）、Update、Delete、Get、List、Records
  - ScriptResolver：按 id 或名称解析自动化脚本
  - StatusWriter：收敛轮询的状态持久化实现
*/
package store

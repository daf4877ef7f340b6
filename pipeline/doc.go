/*
Package pipeline 提供迁移流水线模板的编译能力。

# 概述

流程图经 diagram 包解析为图形与连线后，由 Compiler 转换为 PipelineTemplate：
带有开始标记的图形提供模板描述，任务类型为 manual 或 automated 的图形成为 TaskNode，
连线按源节点归并为后继列表。

# 核心类型

  - Compiler：图到模板的编译器，CompileAll 汇总所有图的校验错误
  - PipelineTemplate / TaskNode：编译产物，尚未持久化
  - TemplateDocument：导入导出使用的可移植文档（JSON / YAML）
  - ValidationError：带路径的校验错误

持久化与引用重映射见 transfer 子包。
*/
package pipeline

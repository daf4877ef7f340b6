// Copyright 2026 MigrationFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 migrationflow 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext
  - 数据库辅助: NewTestDB / NewTestPool，基于 glebarez/sqlite 的内存库
  - 断言工具: AssertJSONEqual / AssertEventuallyTrue / AssertEventuallyEqual
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/mocks: ManualClock（可控时钟）、RecordingWriter（记录状态写入，
    支持按目标注入状态码与错误）
  - testutil/fixtures: 示例流程图与模板文档

# 使用示例

	ctx := testutil.TestContext(t)
	pool := testutil.NewTestPool(t, &store.Item{})
	clock := mocks.NewManualClock(time.Unix(0, 0))
*/
package testutil

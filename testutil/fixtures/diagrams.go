// =============================================================================
// 📦 测试数据 - 流程图与模板文档
// =============================================================================
package fixtures

import "github.com/BaSui01/migrationflow/pipeline"

// RehostDiagram 一个开始图形、三个任务的未压缩流程图
const RehostDiagram = `<mxfile host="app.diagrams.net">
  <diagram id="rehost" name="Rehost">
    <mxGraphModel><root>
      <mxCell id="0"/>
      <mxCell id="1" parent="0"/>
      <object id="start" label="Start" start_marker="Rehost wave servers">
        <mxCell vertex="1" parent="1"/>
      </object>
      <object id="stop" label="Stop application" task_type="manual">
        <mxCell vertex="1" parent="1"/>
      </object>
      <object id="launch" label="Launch cutover instances" task_type="automated" automation_id="launch-cutover">
        <mxCell vertex="1" parent="1"/>
      </object>
      <object id="verify" label="Verify &lt;b&gt;health&lt;/b&gt;" task_type="manual">
        <mxCell vertex="1" parent="1"/>
      </object>
      <mxCell id="e0" edge="1" parent="1" source="start" target="stop"/>
      <mxCell id="e1" edge="1" parent="1" source="stop" target="launch"/>
      <mxCell id="e2" edge="1" parent="1" source="launch" target="verify"/>
    </root></mxGraphModel>
  </diagram>
</mxfile>`

// MissingStartDiagram 没有开始标记的流程图
const MissingStartDiagram = `<mxfile>
  <diagram id="broken" name="Broken">
    <mxGraphModel><root>
      <mxCell id="a" value="Lonely task" vertex="1" task_type="manual"/>
    </root></mxGraphModel>
  </diagram>
</mxfile>`

// TemplateDocument 返回两任务模板文档；automation 为脚本名称
func TemplateDocument(name, automation string) pipeline.TemplateDocument {
	return pipeline.TemplateDocument{
		Name:        name,
		Description: name + " description",
		Tasks: []pipeline.TaskDocument{
			{ID: "a", Name: "Prepare", Automation: pipeline.ManualAutomation, Type: pipeline.TaskManual, Successors: []string{"b"}},
			{ID: "b", Name: "Run automation", Automation: automation, Type: pipeline.TaskAutomated},
		},
	}
}

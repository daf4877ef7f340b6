package pipeline

// Item schemas owned by the template store.
const (
	SchemaTemplate = "pipeline_template"
	SchemaTask     = "pipeline_template_task"
	SchemaScript   = "script"
	SchemaServer   = "server"
)

// Record field names.
const (
	FieldTemplateID          = "pipeline_template_id"
	FieldTemplateName        = "pipeline_template_name"
	FieldTemplateDescription = "pipeline_template_description"

	FieldTaskID         = "pipeline_template_task_id"
	FieldTaskName       = "pipeline_template_task_name"
	FieldTaskAutomation = "task_automation"
	FieldTaskType       = "task_type"
	FieldTaskSuccessors = "task_successors"

	FieldScriptID          = "script_id"
	FieldScriptName        = "script_name"
	FieldScriptDescription = "script_description"

	FieldServerID          = "server_id"
	FieldServerName        = "server_name"
	FieldWaveID            = "wave_id"
	FieldAccountID         = "aws_accountid"
	FieldRegion            = "aws_region"
	FieldSourceServerID    = "source_server_id"
	FieldTargetInstanceID  = "target_instance_id"
	FieldReplicationStatus = "replication_status"
	FieldInstanceStatus    = "instance_status"
)

// CreateResult is what the store answers to a create call.
// A non-empty ValidationErrors means nothing was written.
type CreateResult struct {
	ID               string   `json:"id,omitempty"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// OK reports whether the record was written.
func (r CreateResult) OK() bool {
	return len(r.ValidationErrors) == 0
}

// ScriptRef identifies one automation script.
type ScriptRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

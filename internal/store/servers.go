package store

import (
	"context"

	"github.com/BaSui01/migrationflow/pipeline"
)

// Server server 条目的类型化视图
type Server struct {
	ID                string `json:"server_id"`
	Name              string `json:"server_name"`
	WaveID            string `json:"wave_id"`
	AccountID         string `json:"aws_accountid"`
	Region            string `json:"aws_region"`
	SourceServerID    string `json:"source_server_id,omitempty"`
	TargetInstanceID  string `json:"target_instance_id,omitempty"`
	ReplicationStatus string `json:"replication_status,omitempty"`
	InstanceStatus    string `json:"instance_status,omitempty"`
}

func serverFromItem(it Item) Server {
	return Server{
		ID:                it.ID,
		Name:              it.String(pipeline.FieldServerName),
		WaveID:            it.String(pipeline.FieldWaveID),
		AccountID:         it.String(pipeline.FieldAccountID),
		Region:            it.String(pipeline.FieldRegion),
		SourceServerID:    it.String(pipeline.FieldSourceServerID),
		TargetInstanceID:  it.String(pipeline.FieldTargetInstanceID),
		ReplicationStatus: it.String(pipeline.FieldReplicationStatus),
		InstanceStatus:    it.String(pipeline.FieldInstanceStatus),
	}
}

// WaveServers 列出某个迁移批次下的全部服务器
func (s *Store) WaveServers(ctx context.Context, waveID string) ([]Server, error) {
	items, err := s.ListBy(ctx, pipeline.SchemaServer, pipeline.FieldWaveID, waveID)
	if err != nil {
		return nil, err
	}
	out := make([]Server, len(items))
	for i, it := range items {
		out[i] = serverFromItem(it)
	}
	return out, nil
}

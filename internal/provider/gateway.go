package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/migrationflow/convergence"
)

// GatewayName 网关在错误与指标中的名称
const GatewayName = "gateway"

// Gateway 云提供商状态网关客户端
type Gateway struct {
	*client
}

// NewGateway 创建网关客户端
func NewGateway(baseURL string, timeout time.Duration, opts ...Option) *Gateway {
	return &Gateway{client: newClient(GatewayName, baseURL, timeout, opts)}
}

type describeRequest struct {
	AccountID string   `json:"account_id"`
	Region    string   `json:"region"`
	IDs       []string `json:"ids"`
}

type describeResponse[T any] struct {
	Items []T `json:"items"`
}

// credentialHeader 将凭据放入请求头，按调用传递
func credentialHeader(creds convergence.Credentials) http.Header {
	h := http.Header{}
	h.Set("X-Access-Key-Id", creds.AccessKeyID)
	h.Set("X-Secret-Access-Key", creds.SecretAccessKey)
	if creds.SessionToken != "" {
		h.Set("X-Session-Token", creds.SessionToken)
	}
	return h
}

// DescribeSourceServers 查询源服务器的复制状态
func (g *Gateway) DescribeSourceServers(ctx context.Context, creds convergence.Credentials, accountID, region string, ids []string) ([]convergence.SourceServer, error) {
	var resp describeResponse[convergence.SourceServer]
	req := describeRequest{AccountID: accountID, Region: region, IDs: ids}
	if err := g.postJSON(ctx, "describe_source_servers", "/v1/replication/describe", credentialHeader(creds), req, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// DescribeInstances 查询已启动实例的健康状态
func (g *Gateway) DescribeInstances(ctx context.Context, creds convergence.Credentials, accountID, region string, ids []string) ([]convergence.InstanceStatus, error) {
	var resp describeResponse[convergence.InstanceStatus]
	req := describeRequest{AccountID: accountID, Region: region, IDs: ids}
	if err := g.postJSON(ctx, "describe_instances", "/v1/instances/describe", credentialHeader(creds), req, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func providerIDs(group convergence.Group) []string {
	ids := make([]string, 0, len(group.Targets))
	for _, t := range group.Targets {
		if t.ProviderID != "" {
			ids = append(ids, t.ProviderID)
		}
	}
	return ids
}

// ReplicationFetcher 以源服务器 ID 为键的复制状态 Fetcher
func (g *Gateway) ReplicationFetcher() convergence.Fetcher[convergence.SourceServer] {
	return convergence.FetchFunc[convergence.SourceServer](func(ctx context.Context, creds convergence.Credentials, group convergence.Group) (map[string]convergence.SourceServer, error) {
		items, err := g.DescribeSourceServers(ctx, creds, group.AccountID, group.Region, providerIDs(group))
		if err != nil {
			return nil, err
		}
		out := make(map[string]convergence.SourceServer, len(items))
		for _, item := range items {
			out[item.SourceServerID] = item
		}
		return out, nil
	})
}

// InstanceFetcher 以实例 ID 为键的健康状态 Fetcher
func (g *Gateway) InstanceFetcher() convergence.Fetcher[convergence.InstanceStatus] {
	return convergence.FetchFunc[convergence.InstanceStatus](func(ctx context.Context, creds convergence.Credentials, group convergence.Group) (map[string]convergence.InstanceStatus, error) {
		items, err := g.DescribeInstances(ctx, creds, group.AccountID, group.Region, providerIDs(group))
		if err != nil {
			return nil, err
		}
		out := make(map[string]convergence.InstanceStatus, len(items))
		for _, item := range items {
			out[item.InstanceID] = item
		}
		return out, nil
	})
}

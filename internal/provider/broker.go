package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/convergence"
	"github.com/BaSui01/migrationflow/types"
)

// BrokerName 凭据代理在错误与指标中的名称
const BrokerName = "broker"

// Broker 凭据代理客户端。每次 Acquire 都换取新的短期凭据，不跨轮次缓存。
type Broker struct {
	*client
}

// NewBroker 创建凭据代理客户端
func NewBroker(baseURL string, timeout time.Duration, opts ...Option) *Broker {
	return &Broker{
		client: newClient(BrokerName, baseURL, timeout, opts),
	}
}

type credentialRequest struct {
	AccountID string `json:"account_id"`
	Region    string `json:"region"`
}

type credentialResponse struct {
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"secret_access_key"`
	SessionToken    string    `json:"session_token"`
	Expiration      time.Time `json:"expiration"`
}

// Acquire 为账号与区域换取一份新凭据
func (b *Broker) Acquire(ctx context.Context, accountID, region string) (convergence.Credentials, error) {
	var resp credentialResponse
	if err := b.postJSON(ctx, "acquire_credentials", "/v1/credentials", nil, credentialRequest{AccountID: accountID, Region: region}, &resp); err != nil {
		return convergence.Credentials{}, err
	}
	if resp.AccessKeyID == "" {
		return convergence.Credentials{}, types.NewError(types.ErrUpstreamError, "broker returned empty credentials").
			WithProvider(BrokerName).WithRetryable(true)
	}

	creds := convergence.Credentials{
		AccessKeyID:     resp.AccessKeyID,
		SecretAccessKey: resp.SecretAccessKey,
		SessionToken:    resp.SessionToken,
		Expiry:          resp.Expiration,
	}
	b.logger.Debug("credentials acquired",
		zap.String("account_id", accountID),
		zap.String("region", region),
		zap.Time("expiry", creds.Expiry),
	)
	return creds, nil
}

package sqlstore

import (
	"github.com/goliatone/go-acumatica/core"
	"github.com/goliatone/go-acumatica/ratelimit"
	"github.com/goliatone/go-acumatica/webhooks"
)

var (
	_ core.TokenCache         = (*TokenStore)(nil)
	_ core.TokenCache         = (*CachedTokenStore)(nil)
	_ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
	_ ratelimit.StateStore    = (*RateLimitStateStore)(nil)
	_ ratelimit.StateStore    = (*CachedRateLimitStateStore)(nil)
)

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedeemable(t *testing.T) {
	now := time.Now()
	p := &Purchase{DownloadExpiresAt: now.Add(time.Hour), DownloadCount: 9}

	assert.True(t, p.Redeemable(now, 10))
	assert.True(t, p.Redeemable(p.DownloadExpiresAt, 10), "expiry instant is still valid")
	assert.False(t, p.Redeemable(p.DownloadExpiresAt.Add(time.Nanosecond), 10))

	p.DownloadCount = 10
	assert.False(t, p.Redeemable(now, 10))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
database:
  path: ./data/sync.db
erp:
  base_url: https://erp.example.com
  account: acme
  api_key: secret
`

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 10.0, cfg.API.RateLimit.RPS)
	assert.Equal(t, 5, cfg.API.RateLimit.Burst)

	assert.Equal(t, 500, cfg.ERP.PageSize)
	assert.Equal(t, 30*time.Second, cfg.ERP.Timeout)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)

	assert.Equal(t, 30, cfg.Controller.InitialWindow)
	assert.Equal(t, 5, cfg.Controller.MinWindow)
	assert.Equal(t, 50, cfg.Controller.MaxWindow)
	assert.Equal(t, 500*time.Millisecond, cfg.Controller.InitialDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Controller.MinDelay)
	assert.Equal(t, 10*time.Second, cfg.Controller.MaxDelay)

	assert.Equal(t, 15*time.Minute, cfg.Scheduler.ReconcileInterval)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.OrderInterval)
	assert.Equal(t, time.Hour, cfg.Scheduler.ProductInterval)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 20, cfg.Scheduler.ClaimBatch)
	assert.Equal(t, 5, cfg.Scheduler.MaxRetries)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_ERP_KEY", "expanded-secret")
	t.Setenv("TEST_SITE_SECRET", "cs_expanded")

	cfg, err := Load(writeConfig(t, `
database:
  path: ./data/sync.db
erp:
  base_url: https://erp.example.com
  account: acme
  api_key: ${TEST_ERP_KEY}
sites:
  - name: shop-eu
    base_url: https://shop.example.com
    key: ck_live
    secret: ${TEST_SITE_SECRET}
    enabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, "expanded-secret", cfg.ERP.APIKey)
	assert.Equal(t, "cs_expanded", cfg.Sites[0].Secret)
}

func TestLoad_SiteDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
sites:
  - name: shop-eu
    base_url: https://shop.example.com
    key: ck
    secret: cs
    enabled: true
`))
	require.NoError(t, err)
	require.Len(t, cfg.Sites, 1)
	assert.Equal(t, 100, cfg.Sites[0].PageSize)
	assert.Equal(t, 30*time.Second, cfg.Sites[0].Timeout)
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing database path",
			content: "erp:\n  base_url: https://erp.example.com\n  account: a\n  api_key: k\n",
			wantErr: "database path",
		},
		{
			name:    "missing erp base url",
			content: "database:\n  path: ./db\nerp:\n  account: a\n  api_key: k\n",
			wantErr: "erp base_url",
		},
		{
			name:    "missing erp credentials",
			content: "database:\n  path: ./db\nerp:\n  base_url: https://erp.example.com\n",
			wantErr: "erp credentials",
		},
		{
			name: "duplicate site names",
			content: minimalConfig + `
sites:
  - name: shop-eu
  - name: shop-eu
`,
			wantErr: "duplicate site name",
		},
		{
			name: "enabled site without credentials",
			content: minimalConfig + `
sites:
  - name: shop-eu
    base_url: https://shop.example.com
    enabled: true
`,
			wantErr: "key/secret",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestFiltersFor_SiteOverride(t *testing.T) {
	cfg := &Config{
		Filters: FilterConfig{ExcludeWarehouses: []string{"Global"}},
		Sites: []SiteConfig{
			{Name: "shop-eu", Filters: &FilterConfig{AllowSKUs: []string{"A1"}}},
			{Name: "shop-us"},
		},
	}

	override := cfg.FiltersFor("shop-eu")
	assert.Equal(t, []string{"A1"}, override.AllowSKUs)
	assert.Empty(t, override.ExcludeWarehouses)

	global := cfg.FiltersFor("shop-us")
	assert.Equal(t, []string{"Global"}, global.ExcludeWarehouses)

	unknown := cfg.FiltersFor("nope")
	assert.Equal(t, cfg.Filters, unknown)
}

func TestPolicyFor_SiteOverride(t *testing.T) {
	cfg := &Config{
		Policy: PolicyConfig{SyncToInStock: true, SyncToOutOfStock: true},
		Sites: []SiteConfig{
			{Name: "shop-eu", Policy: &PolicyConfig{SyncToOutOfStock: true}},
		},
	}

	eu := cfg.PolicyFor("shop-eu")
	assert.False(t, eu.SyncToInStock)
	assert.True(t, eu.SyncToOutOfStock)

	other := cfg.PolicyFor("shop-us")
	assert.True(t, other.SyncToInStock)
}

func TestSiteByName(t *testing.T) {
	cfg := &Config{Sites: []SiteConfig{{Name: "shop-eu"}, {Name: "shop-us"}}}

	site := cfg.SiteByName("shop-us")
	require.NotNil(t, site)
	assert.Equal(t, "shop-us", site.Name)

	assert.Nil(t, cfg.SiteByName("missing"))
}

package config

import (
	"os"
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/spf13/viper"
)

func TestSetupViper_Defaults(t *testing.T) {
	v := viper.New()
	SetupViper(v, "auctiontee-nonexistent")

	cfg, err := New(v)
	check.NoError(t, err)
	check.Equal(t, 8080, cfg.Port)
	check.Equal(t, 8, cfg.Dispatch.NumWorkers)
	check.Equal(t, 250, cfg.Timeout.GenerateBidMs)
	check.True(t, cfg.Envelope.EnableEncryption)
	check.False(t, cfg.Origins.EnableProtectedAppSignals)
}

func TestSetupViper_EnvOverride(t *testing.T) {
	os.Setenv("DISPATCH_JS_NUM_WORKERS", "32")
	defer os.Unsetenv("DISPATCH_JS_NUM_WORKERS")

	v := viper.New()
	SetupViper(v, "auctiontee-nonexistent")

	cfg, err := New(v)
	check.NoError(t, err)
	check.Equal(t, 32, cfg.Dispatch.NumWorkers)
}

func TestTimeoutConfig_Durations(t *testing.T) {
	tc := TimeoutConfig{GenerateBidMs: 250, BiddingSignalsLoadMs: 500, ScoreAdsRpcMs: 500, KeyValueSignalsFetchRpcMs: 500}
	check.Equal(t, "250ms", tc.GenerateBid().String())
	check.Equal(t, "500ms", tc.BiddingSignalsLoad().String())
	check.Equal(t, "500ms", tc.ScoreAdsRpc().String())
	check.Equal(t, "500ms", tc.KeyValueSignalsFetchRpc().String())
}

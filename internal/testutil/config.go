package testutil

import (
	"testing"

	"github.com/spf13/viper"
)

// ResetViper resets the global viper instance now and again when the test
// completes.
func ResetViper(t testing.TB) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
}

// SetViperValue sets a viper configuration value and schedules cleanup.
func SetViperValue(t testing.TB, key string, value any) {
	t.Helper()

	oldValue := viper.Get(key)
	hadValue := viper.IsSet(key)

	viper.Set(key, value)

	t.Cleanup(func() {
		if hadValue {
			viper.Set(key, oldValue)
		}
		// viper has no Unset; an unset key stays overridden until ResetViper.
	})
}

package systems

import (
	"github.com/pthm-cable/flowtrails/config"
)

func init() {
	// Initialize config for tests
	config.MustInit("")
}

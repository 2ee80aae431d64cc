package detour

import (
	"os"
	"sync"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/discard"
)

var (
	logMu  sync.RWMutex
	logger log.Interface = &log.Logger{Handler: discard.Default, Level: log.InfoLevel}
)

// SetDebug turns on debug logging of patch operations to stderr.
func SetDebug(enable bool) {
	logMu.Lock()
	defer logMu.Unlock()
	if enable {
		logger = &log.Logger{Handler: cli.New(os.Stderr), Level: log.DebugLevel}
	} else {
		logger = &log.Logger{Handler: discard.Default, Level: log.InfoLevel}
	}
}

func packageLogger() log.Interface {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

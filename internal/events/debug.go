package events

import (
	"github.com/trashd/trashd/internal/logger"
)

var (
	debug = logger.IsDebugFacility("events")
	dl    = logger.DefaultLogger
)

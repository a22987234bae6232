// Package autoload initializes the global zerolog logger from the
// LOG-prefixed environment on import.
package autoload

import (
	configx "github.com/ykravets/friendbook/pkg/config"
	logx "github.com/ykravets/friendbook/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}

package roles

import "github.com/okian/xpboard/pkg/logger"

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

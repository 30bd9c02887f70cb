package logger

import "go.uber.org/zap"

// New builds the application logger. Development mode uses the console
// encoder; anything else uses production JSON output.
func New(env string) *zap.Logger {
	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stdout"}

	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log
}

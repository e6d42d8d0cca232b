package smoke

import (
	"net"

	insurance "github.com/goliatone/go-insurance"
	"github.com/goliatone/go-insurance/repository"
)

// SelfHosted starts the API on a loopback port over memory stores and
// returns its base URL. stop shuts the server down.
func SelfHosted(logger insurance.Logger) (baseURL string, stop func() error, err error) {
	if logger == nil {
		logger = insurance.NopLogger()
	}

	repos := repository.NewMemoryManager(repository.WithLogger(logger))
	svc := insurance.NewService(repos, insurance.ServiceConfig{
		SigningKey:       []byte("self-hosted-smoke"),
		BcryptCost:       4,
		Attempts:         repository.NewMemoryAttempts(nil),
		MaxLoginAttempts: insurance.DefaultMaxLoginAttempts,
		LoginCooldown:    insurance.DefaultLoginCooldown,
		Logger:           logger,
	})

	app := insurance.NewApp(insurance.AppConfig{Logger: logger})
	svc.Mount(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}

	go func() {
		if err := app.Listener(ln); err != nil {
			logger.Error("self hosted server stopped", "error", err)
		}
	}()

	return "http://" + ln.Addr().String(), app.Shutdown, nil
}

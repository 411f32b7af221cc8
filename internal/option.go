package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	decks  []string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithDecks adds deck definitions to those listed in the configuration.
func WithDecks(paths ...string) Option {
	return func(a *application) {
		a.decks = append(a.decks, paths...)
	}
}

package main

import "time"

type Config struct {
	BufferSize        int           `env:"BUFFER_SIZE,required=true"`
	LimitMessages     *int          `env:"LIMIT_MESSAGES"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,required=true"`
	AbsenceGrace      time.Duration `env:"ABSENCE_GRACE,default=30s"`
	KickNotifyDelay   time.Duration `env:"KICK_NOTIFY_DELAY,default=300ms"`
	MirrorInterval    time.Duration `env:"MIRROR_INTERVAL,default=15s"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL,default=1m"`
	ClassifierURL     string        `env:"CLASSIFIER_URL"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT,default=2s"`
	WebhookURL        string        `env:"ESCALATION_WEBHOOK_URL"`
	WebhookTimeout    time.Duration `env:"ESCALATION_WEBHOOK_TIMEOUT,default=5s"`
	EscalationBackoff time.Duration `env:"ESCALATION_BACKOFF,default=2s"`
	OperatorSessionID string        `env:"OPERATOR_SESSION_ID"`
	DeliverTagged     bool          `env:"DELIVER_TAGGED,default=false"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	TokenDuration     time.Duration `env:"TOKEN_DURATION,default=24h"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,default=8080"`
}

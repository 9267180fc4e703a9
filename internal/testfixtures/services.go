package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/event-scheduler/internal/application"
	"github.com/example/event-scheduler/internal/claims"
	"github.com/example/event-scheduler/internal/scheduler"
)

// TestSecret signs every token issued through a ServiceFactory.
const TestSecret = "testfixtures-secret"

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Hasher      application.PasswordHasher
	Notifier    *RecordingNotifier
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Hasher:      PlainHasher{},
		Notifier:    &RecordingNotifier{},
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Hasher == nil {
		factory.Hasher = PlainHasher{}
	}
	if factory.Notifier == nil {
		factory.Notifier = &RecordingNotifier{}
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithHasher overrides the password hasher.
func WithHasher(hasher application.PasswordHasher) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Hasher = hasher
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// Signer returns a claims signer on the factory clock.
func (f *ServiceFactory) Signer() *claims.Signer {
	signer, err := claims.NewSigner(TestSecret, "testfixtures", f.Clock.NowFunc())
	if err != nil {
		panic(err)
	}
	return signer
}

// Services bundles every application service over one store.
type Services struct {
	Auth        *application.AuthService
	Users       *application.UserService
	Events      *application.EventService
	Invitations *application.InvitationService
}

// NewServices builds all services over store with the given conflict policy.
// A nil policy checks role user only.
func (f *ServiceFactory) NewServices(store application.Transactor, policy scheduler.EligibilityPolicy) Services {
	if policy == nil {
		policy = scheduler.RoleUserOnly
	}
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()
	signer := f.Signer()
	return Services{
		Auth:   application.NewAuthServiceWithLogger(store, f.Hasher, signer, now, time.Hour, f.Logger),
		Users:  application.NewUserServiceWithLogger(store, now, f.Logger),
		Events: application.NewEventServiceWithLogger(store, scheduler.NewDetector(policy), f.Notifier, ids, now, f.Logger),
		Invitations: application.NewInvitationServiceWithLogger(store, f.Hasher, signer, f.Notifier, ids, now, application.InvitationSettings{
			TTL:     24 * time.Hour,
			LinkURL: "http://localhost:3000/register",
		}, f.Logger),
	}
}

// PlainHasher stores passwords as "hashed:<plain>" so tests stay fast.
type PlainHasher struct{}

func (PlainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (PlainHasher) Verify(plain, hash string) bool { return hash != "" && hash == "hashed:"+plain }

// RecordingNotifier captures notifications instead of sending them.
type RecordingNotifier struct {
	mu            sync.Mutex
	invites       []string
	cancellations []application.CancellationNotice
}

func (n *RecordingNotifier) SendInvite(_ context.Context, email, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invites = append(n.invites, email+" "+link)
	return nil
}

func (n *RecordingNotifier) SendCancellation(_ context.Context, notice application.CancellationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancellations = append(n.cancellations, notice)
	return nil
}

// Invites returns "<email> <link>" for each invitation sent so far.
func (n *RecordingNotifier) Invites() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.invites...)
}

// Cancellations returns the cancellation notices sent so far.
func (n *RecordingNotifier) Cancellations() []application.CancellationNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]application.CancellationNotice(nil), n.cancellations...)
}

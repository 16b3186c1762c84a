package shared

// AggregateRoot adds optimistic-lock versioning and domain-event
// accumulation on top of Entity.
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot is the embeddable implementation of AggregateRoot.
// Version participates in the optimistic save check; domainEvents is
// transient and drained by the caller after a successful save.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int           `gorm:"not null;default:1"`
	domainEvents []DomainEvent `gorm:"-"`
}

// NewBaseAggregateRoot starts a new aggregate at version 1.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

package domain

// BidStatus is the lifecycle state of a bid. pending is the only
// non-terminal state; accepted, rejected and withdrawn are terminal.
type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
)

func (s BidStatus) IsValid() bool {
	switch s {
	case BidStatusPending, BidStatusAccepted, BidStatusRejected, BidStatusWithdrawn:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s BidStatus) IsTerminal() bool {
	return s != BidStatusPending
}

// CanTransitionTo is the single transition authority for bids.
func (s BidStatus) CanTransitionTo(next BidStatus) bool {
	if s != BidStatusPending {
		return false
	}
	switch next {
	case BidStatusAccepted, BidStatusRejected, BidStatusWithdrawn:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a job posting.
type JobStatus string

const (
	JobStatusOpen       JobStatus = "open"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusOpen, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusOpen:       {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress: {JobStatusCompleted, JobStatusCancelled},
	JobStatusCompleted:  {},
	JobStatusCancelled:  {},
}

func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ProjectStatus is the lifecycle state of a settled engagement.
type ProjectStatus string

const (
	ProjectStatusPendingContract ProjectStatus = "pending_contract"
	ProjectStatusActive          ProjectStatus = "active"
	ProjectStatusCompleted       ProjectStatus = "completed"
	ProjectStatusDisputed        ProjectStatus = "disputed"
)

var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusPendingContract: {ProjectStatusActive, ProjectStatusDisputed},
	ProjectStatusActive:          {ProjectStatusCompleted, ProjectStatusDisputed},
	ProjectStatusCompleted:       {},
	ProjectStatusDisputed:        {},
}

func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	for _, allowed := range projectTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ContractStatus is the signature state of a generated contract.
type ContractStatus string

const (
	ContractStatusPendingSignatures ContractStatus = "pending_signatures"
	ContractStatusActive            ContractStatus = "active"
	ContractStatusCancelled         ContractStatus = "cancelled"
)

var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractStatusPendingSignatures: {ContractStatusActive, ContractStatusCancelled},
	ContractStatusActive:            {ContractStatusCancelled},
	ContractStatusCancelled:         {},
}

func (s ContractStatus) CanTransitionTo(next ContractStatus) bool {
	for _, allowed := range contractTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

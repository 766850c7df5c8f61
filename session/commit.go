package session

// CommitMode is the commit strength of spec.md §4.1/§6 "Environment", one
// per transaction, governing whether the WAL is fsynced synchronously and
// whether dirty buffers are flushed before ack. Grounded on
// env.h's CommitType enum (DEFAULT_COMMIT, SOFT_COMMIT, FAST_SOFT_COMMIT,
// CAREFUL_COMMIT, FAST_CAREFUL_COMMIT, SYNCED_COMMIT) — the six strengths
// spec.md §4.1 names, DefaultCommit being the implicit sixth.
type CommitMode int

const (
	DefaultCommit CommitMode = iota
	SoftCommit
	FastSoftCommit
	CarefulCommit
	FastCarefulCommit
	SyncedCommit
)

func (m CommitMode) String() string {
	switch m {
	case DefaultCommit:
		return "Default"
	case SoftCommit:
		return "Soft"
	case FastSoftCommit:
		return "FastSoft"
	case CarefulCommit:
		return "Careful"
	case FastCarefulCommit:
		return "FastCareful"
	case SyncedCommit:
		return "Synced"
	default:
		return "Unknown"
	}
}

// Durable reports whether this commit mode fsyncs the WAL before ack,
// grounded on the "Careful"/"Synced" modes flushing the WAL synchronously
// per spec.md §5 "Suspension points".
func (m CommitMode) Durable() bool {
	switch m {
	case CarefulCommit, FastCarefulCommit, SyncedCommit:
		return true
	default:
		return false
	}
}

// commitTypeStack tracks the system (process) default commit mode and an
// optional stack of user/transaction overlays pushed by BeginProcedure and
// popped by EndProcedure, grounded on env.h's system_type/user_type split
// and WeaverConnection.c's ResetTransactionCommitType. Spec.md §4.1's
// "three user/transaction overlay variants" is resolved here as a pushable
// override rather than three more named constants: an overlay always wraps
// one of the six CommitMode values above, scoped to the procedure body that
// pushed it (an Open Question resolution, see DESIGN.md).
type commitTypeStack struct {
	system  CommitMode
	overlay []CommitMode
}

func (s *commitTypeStack) effective() CommitMode {
	if len(s.overlay) > 0 {
		return s.overlay[len(s.overlay)-1]
	}
	return s.system
}

func (s *commitTypeStack) push(m CommitMode) {
	s.overlay = append(s.overlay, m)
}

func (s *commitTypeStack) pop() {
	if len(s.overlay) > 0 {
		s.overlay = s.overlay[:len(s.overlay)-1]
	}
}

func (s *commitTypeStack) reset() {
	s.overlay = nil
}

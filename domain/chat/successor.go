package chat

// SuccessorPolicy picks the member that takes over the admin role from
// outgoing. It must be deterministic: the same membership order always
// yields the same successor.
type SuccessorPolicy func(members []string, outgoing string) (string, bool)

// FirstByInsertionOrder picks the earliest-added member other than outgoing.
func FirstByInsertionOrder(members []string, outgoing string) (string, bool) {
	for _, id := range members {
		if id != outgoing {
			return id, true
		}
	}
	return "", false
}

// Package chat contains the chat and group aggregate.
// Every mutating method validates its preconditions before touching any
// field, so a rejected call leaves the aggregate unchanged.
// No runtime, network or storage logic belongs here.
package chat

import (
	"slices"
	"time"

	"syncx/errors"

	"github.com/samber/lo"
)

type Kind string

const (
	Direct Kind = "direct"
	Group  Kind = "group"
)

type State string

const (
	Active  State = "active"
	Deleted State = "deleted"
)

const (
	// MaxMembers caps the size of a group.
	MaxMembers = 100
	// MinMembersAfterRemoval is the smallest group RemoveMember may leave behind.
	MinMembersAfterRemoval = 3
	// DeletionFloor is the size a group must strictly exceed to be deleted.
	DeletionFloor = 3
)

// Attachment references a stored blob: its store id and public url.
type Attachment struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Chat is the unit of consistency. Members keeps insertion order, which the
// successor policy relies on.
type Chat struct {
	ID          string      `json:"_id"`
	Kind        Kind        `json:"kind"`
	Name        string      `json:"name"`
	Members     []string    `json:"members"`
	CreatorID   string      `json:"creator,omitempty"`
	AdminID     string      `json:"groupAdmin,omitempty"`
	Description string      `json:"groupDescription,omitempty"`
	Image       *Attachment `json:"groupImage,omitempty"`
	State       State       `json:"state"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// NewGroup builds an active group. The creator is appended to members when
// absent and becomes admin; duplicates are dropped keeping first occurrence.
func NewGroup(id, name, creatorID string, memberIDs []string, now time.Time) (Chat, error) {
	if name == "" {
		return Chat{}, errors.ErrValidation.WithMessage("group name is required")
	}
	members := lo.Uniq(lo.Compact(append(slices.Clone(memberIDs), creatorID)))
	if len(members) > MaxMembers {
		return Chat{}, errors.ErrLimitExceeded
	}
	return Chat{
		ID:        id,
		Kind:      Group,
		Name:      name,
		Members:   members,
		CreatorID: creatorID,
		AdminID:   creatorID,
		State:     Active,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewDirect builds the pairwise chat between two distinct users.
func NewDirect(id, name, a, b string, now time.Time) (Chat, error) {
	if a == b {
		return Chat{}, errors.ErrSelfReference
	}
	return Chat{
		ID:        id,
		Kind:      Direct,
		Name:      name,
		Members:   []string{a, b},
		State:     Active,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (c Chat) IsGroup() bool { return c.Kind == Group }

func (c Chat) IsMember(userID string) bool { return slices.Contains(c.Members, userID) }

func (c Chat) IsAdmin(userID string) bool { return c.IsGroup() && c.AdminID == userID }

// Others returns members except userID, in insertion order.
func (c Chat) Others(userID string) []string {
	return lo.Without(c.Members, userID)
}

// Check verifies the structural invariants of the aggregate.
func (c Chat) Check() error {
	if len(lo.Uniq(lo.Compact(c.Members))) != len(c.Members) {
		return errors.ErrValidation.WithMessage("chat %s has duplicated members", c.ID)
	}
	switch c.Kind {
	case Direct:
		if len(c.Members) != 2 || c.AdminID != "" {
			return errors.ErrValidation.WithMessage("direct chat %s must have 2 members and no admin", c.ID)
		}
	case Group:
		if c.State == Deleted {
			return nil
		}
		if len(c.Members) == 0 || !c.IsMember(c.AdminID) {
			return errors.ErrValidation.WithMessage("group %s admin must be a member", c.ID)
		}
	default:
		return errors.ErrValidation.WithMessage("chat %s has unknown kind %q", c.ID, c.Kind)
	}
	return nil
}

func (c *Chat) requireActiveGroup() error {
	if !c.IsGroup() {
		return errors.ErrNotGroupChat
	}
	if c.State == Deleted {
		return errors.ErrChatDeleted
	}
	return nil
}

func (c *Chat) requireAdmin(callerID string) error {
	if err := c.requireActiveGroup(); err != nil {
		return err
	}
	if c.AdminID != callerID {
		return errors.ErrNotAdmin
	}
	return nil
}

// AddMembers appends the ids not yet present and returns them.
func (c *Chat) AddMembers(callerID string, ids []string, now time.Time) ([]string, error) {
	if err := c.requireAdmin(callerID); err != nil {
		return nil, err
	}
	var added []string
	for _, id := range lo.Uniq(lo.Compact(ids)) {
		if !c.IsMember(id) {
			added = append(added, id)
		}
	}
	if len(c.Members)+len(added) > MaxMembers {
		return nil, errors.ErrLimitExceeded
	}
	c.Members = append(c.Members, added...)
	c.UpdatedAt = now
	return added, nil
}

// RemoveMember drops targetID from the group, keeping at least
// MinMembersAfterRemoval members.
func (c *Chat) RemoveMember(callerID, targetID string, now time.Time) error {
	if err := c.requireAdmin(callerID); err != nil {
		return err
	}
	if targetID == c.AdminID {
		return errors.ErrTargetIsAdmin
	}
	if !c.IsMember(targetID) {
		return errors.ErrTargetNotMember
	}
	if len(c.Members)-1 < MinMembersAfterRemoval {
		return errors.ErrMinimumMembers.WithMessage(
			"group must keep at least %d members", MinMembersAfterRemoval)
	}
	c.Members = lo.Without(c.Members, targetID)
	c.UpdatedAt = now
	return nil
}

// AssignAdmin hands the admin role to another member.
func (c *Chat) AssignAdmin(callerID, targetID string, now time.Time) error {
	if err := c.requireAdmin(callerID); err != nil {
		return err
	}
	if targetID == c.AdminID {
		return errors.ErrAlreadyAdmin
	}
	if !c.IsMember(targetID) {
		return errors.ErrTargetNotMember
	}
	c.AdminID = targetID
	c.UpdatedAt = now
	return nil
}

// RemoveAdminRole transfers the role to the successor picked by policy and
// returns the new admin. The caller stays a member.
func (c *Chat) RemoveAdminRole(callerID string, policy SuccessorPolicy, now time.Time) (string, error) {
	if err := c.requireAdmin(callerID); err != nil {
		return "", err
	}
	successor, ok := policy(c.Members, c.AdminID)
	if !ok {
		return "", errors.ErrNoEligibleSuccessor
	}
	c.AdminID = successor
	c.UpdatedAt = now
	return successor, nil
}

// LeaveOutcome describes what a Leave call did.
type LeaveOutcome struct {
	// Deleted is set when the caller was the sole member.
	Deleted bool
	// NewAdmin is set when the caller was admin and handed the role over.
	NewAdmin string
}

// Leave removes the caller. A sole member deletes the group; an admin hands
// the role over before leaving.
func (c *Chat) Leave(callerID string, policy SuccessorPolicy, now time.Time) (LeaveOutcome, error) {
	if err := c.requireActiveGroup(); err != nil {
		return LeaveOutcome{}, err
	}
	if !c.IsMember(callerID) {
		return LeaveOutcome{}, errors.ErrNotMember
	}
	if len(c.Members) == 1 {
		c.State = Deleted
		c.UpdatedAt = now
		return LeaveOutcome{Deleted: true}, nil
	}
	var outcome LeaveOutcome
	if c.AdminID == callerID {
		successor, ok := policy(c.Members, callerID)
		if !ok {
			return LeaveOutcome{}, errors.ErrNoEligibleSuccessor
		}
		c.AdminID = successor
		outcome.NewAdmin = successor
	}
	c.Members = lo.Without(c.Members, callerID)
	c.UpdatedAt = now
	return outcome, nil
}

// Delete marks the group deleted. Groups at or below DeletionFloor members
// must be shrunk or handed over instead.
func (c *Chat) Delete(callerID string, now time.Time) error {
	if err := c.requireAdmin(callerID); err != nil {
		return err
	}
	if len(c.Members) <= DeletionFloor {
		return errors.ErrMinimumMembers.WithMessage(
			"cannot delete group with %d or fewer members, remove members or transfer admin rights first", DeletionFloor)
	}
	c.State = Deleted
	c.UpdatedAt = now
	return nil
}

// GroupEdit lists the metadata fields to change; nil fields are kept.
type GroupEdit struct {
	Name        *string
	Description *string
	Image       *Attachment
}

// Edit applies e and returns the image it replaced, if any.
func (c *Chat) Edit(callerID string, e GroupEdit, now time.Time) (*Attachment, error) {
	if err := c.requireAdmin(callerID); err != nil {
		return nil, err
	}
	if e.Name != nil {
		if *e.Name == "" {
			return nil, errors.ErrValidation.WithMessage("group name is required")
		}
		c.Name = *e.Name
	}
	if e.Description != nil {
		c.Description = *e.Description
	}
	var replaced *Attachment
	if e.Image != nil {
		replaced = c.Image
		c.Image = e.Image
	}
	c.UpdatedAt = now
	return replaced, nil
}

// DeleteDirect marks a direct chat deleted on behalf of one of its members.
func (c *Chat) DeleteDirect(callerID string, now time.Time) error {
	if c.IsGroup() {
		return errors.ErrGroupChat
	}
	if !c.IsMember(callerID) {
		return errors.ErrNotMember
	}
	c.State = Deleted
	c.UpdatedAt = now
	return nil
}

// DropUser removes a deleted account from the chat without the usual
// floors. Direct chats cannot survive losing a party and are deleted; a group
// losing its admin hands the role over, and an emptied group is deleted.
func (c *Chat) DropUser(userID string, policy SuccessorPolicy, now time.Time) {
	if !c.IsMember(userID) {
		return
	}
	c.UpdatedAt = now
	if !c.IsGroup() {
		c.State = Deleted
		return
	}
	if c.AdminID == userID {
		if successor, ok := policy(c.Members, userID); ok {
			c.AdminID = successor
		}
	}
	c.Members = lo.Without(c.Members, userID)
	if len(c.Members) == 0 {
		c.AdminID = ""
		c.State = Deleted
	}
}

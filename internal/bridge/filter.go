package bridge

import "github.com/soyeahso/mmassist/internal/domain"

// Eligible reports whether a post should be answered: it must mention
// selfID and must not have been written by selfID.
func Eligible(data domain.MessageData, selfID string) bool {
	if selfID == "" {
		return false
	}
	return data.MentionsUser(selfID) && data.Post.UserID != selfID
}

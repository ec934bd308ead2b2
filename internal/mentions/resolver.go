package mentions

import (
	"regexp"
	"strings"

	"collabboard-api/internal/models"
)

// handlePattern matches an @handle token. The tokenizer additionally requires
// the preceding character (if any) to be whitespace, so "a@b" stays an email.
var handlePattern = regexp.MustCompile(`@[a-zA-Z0-9_.-]+`)

// candidateStrip removes everything outside [a-z0-9._-] from a normalized
// full name.
var candidateStrip = regexp.MustCompile(`[^a-z0-9._-]+`)

// Resolved pairs an extracted handle with the project member it matched.
type Resolved struct {
	Handle string
	UserID string
}

// ExtractHandles scans the text for @handle tokens and returns the handles
// lowercased, deduplicated, in first-occurrence order.
func ExtractHandles(text string) []string {
	locs := handlePattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(locs))
	var handles []string
	for _, loc := range locs {
		if loc[0] > 0 {
			prev := text[loc[0]-1]
			if prev != ' ' && prev != '\t' && prev != '\n' && prev != '\r' {
				continue
			}
		}
		handle := strings.ToLower(text[loc[0]+1 : loc[1]])
		if _, ok := seen[handle]; ok {
			continue
		}
		seen[handle] = struct{}{}
		handles = append(handles, handle)
	}
	return handles
}

// CandidateHandles derives the handles a profile answers to: the email local
// part, and the full name with whitespace collapsed to dots and everything
// outside [a-z0-9._-] stripped. All lowercased.
func CandidateHandles(p models.Profile) []string {
	var candidates []string

	if at := strings.IndexByte(p.Email, '@'); at > 0 {
		candidates = append(candidates, strings.ToLower(p.Email[:at]))
	}

	if p.FullName != "" {
		name := strings.ToLower(strings.TrimSpace(p.FullName))
		name = strings.Join(strings.Fields(name), ".")
		name = candidateStrip.ReplaceAllString(name, "")
		if name != "" {
			candidates = append(candidates, name)
		}
	}

	return candidates
}

// Resolve maps each extracted handle to the first member profile whose
// candidate set contains it. Unresolved handles are dropped, the author is
// filtered out, and duplicate user ids are collapsed. Order follows the
// handles' first occurrence in the body.
func Resolve(body, authorID string, members []models.Profile) []Resolved {
	handles := ExtractHandles(body)
	if len(handles) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(handles))
	var resolved []Resolved
	for _, handle := range handles {
		for _, member := range members {
			if !hasCandidate(member, handle) {
				continue
			}
			if member.ID == authorID {
				break
			}
			if _, dup := seen[member.ID]; dup {
				break
			}
			seen[member.ID] = struct{}{}
			resolved = append(resolved, Resolved{Handle: handle, UserID: member.ID})
			break
		}
	}
	return resolved
}

// Delta resolves both bodies and returns the mentions present in the new
// body but not the old one. Removing a mention produces nothing; receipts
// are sticky.
func Delta(oldBody, newBody, authorID string, members []models.Profile) []Resolved {
	oldSet := make(map[string]struct{})
	for _, r := range Resolve(oldBody, authorID, members) {
		oldSet[r.UserID] = struct{}{}
	}

	var added []Resolved
	for _, r := range Resolve(newBody, authorID, members) {
		if _, ok := oldSet[r.UserID]; !ok {
			added = append(added, r)
		}
	}
	return added
}

func hasCandidate(p models.Profile, handle string) bool {
	for _, c := range CandidateHandles(p) {
		if c == handle {
			return true
		}
	}
	return false
}

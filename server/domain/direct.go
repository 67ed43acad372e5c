package domain

// DirectSeparator joins the two sorted user ids of a direct room.
const DirectSeparator = "_dm_"

// SortedPair orders two user ids lexicographically.
func SortedPair(a, b string) [2]string {
	if b < a {
		return [2]string{b, a}
	}
	return [2]string{a, b}
}

// DirectRoomID derives the canonical room id for an unordered pair of users.
// DirectRoomID(a, b) == DirectRoomID(b, a).
func DirectRoomID(a, b string) string {
	pair := SortedPair(a, b)
	return pair[0] + DirectSeparator + pair[1]
}

// DirectRoomName is the display label stamped on a direct room.
func DirectRoomName(initiator, target UserSummary) string {
	return initiator.Name + " & " + target.Name
}

package utils

//Labels maps a class id (0-based index) to a product name
type Labels []string

//Lookup returns the name of given class id. ok is false when the id is outside the table
func (l Labels) Lookup(classID int) (name string, ok bool) {
	if classID < 0 || classID >= len(l) {
		return "", false
	}

	return l[classID], true
}

//InSlice returns true if given string appears in given slice
func InSlice(lookingFor string, slice []string) bool {
	for _, s := range slice {
		if s == lookingFor {
			return true
		}
	}

	return false
}

//Dedup returns given names without empty strings and repeated entries, keeping first-seen order
func Dedup(names []string) []string {
	res := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || InSlice(n, res) {
			continue
		}
		res = append(res, n)
	}

	return res
}

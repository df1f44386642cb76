package field

// tag.go handles extracting info from the "egg:" tag string (from struct field metadata)

import (
	"errors"
	"fmt"
	"strings"
)

// GetTagInfo extracts the GraphQL field name, resolver arguments and description from a tag.
// A tag looks like "name(arg1,arg2)#description" where every part is optional.
// If the tag just contains a dash (-) then nil is returned (no error).  If the tag string is empty
// then the returned Info is not nil but the Name field is empty.
func GetTagInfo(tag string) (*Info, error) {
	if tag == "-" {
		return nil, nil // this field is to be ignored
	}
	main, description, _ := strings.Cut(tag, "#")
	fieldInfo, err := getMain(strings.TrimSpace(main))
	if err != nil {
		return nil, fmt.Errorf("%w in tag %q", err, tag)
	}
	fieldInfo.Description = strings.TrimSpace(description)
	return fieldInfo, nil
}

// getMain handles the resolver name and the (optional) bracketed argument list following it
func getMain(s string) (*Info, error) {
	r := &Info{}
	i := strings.IndexByte(s, '(')
	if i == -1 {
		if strings.ContainsAny(s, ",)") {
			return nil, fmt.Errorf("unexpected character in resolver name %q", s)
		}
		r.Name = s
		return r, nil
	}
	r.Name = strings.TrimSpace(s[:i])
	list, err := getBracketedList(s[i:])
	if err != nil {
		return nil, fmt.Errorf("%w getting resolver args", err)
	}
	r.Params = list
	return r, nil
}

// getBracketedList gets a list of comma-separated names from a string enclosed in brackets.
// Eg for getBracketedList("(a, b)") it will return the list {"a", "b"}.
func getBracketedList(s string) ([]string, error) {
	last := len(s) - 1
	if last < 1 || s[0] != '(' || s[last] != ')' {
		return nil, errors.New("arguments not in brackets")
	}
	s = strings.TrimSpace(s[1:last])
	if s == "" {
		return []string{}, nil // empty parameter list
	}
	if strings.ContainsAny(s, "()") {
		return nil, errors.New("nested brackets in argument list")
	}
	list := strings.Split(s, ",")
	for i := range list {
		if list[i] = strings.TrimSpace(list[i]); list[i] == "" {
			return nil, fmt.Errorf("empty name for argument %d", i+1)
		}
	}
	return list, nil
}

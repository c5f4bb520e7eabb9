package models

import (
	"fmt"
	"strings"
)

type ParentKind string

const (
	ParentQuestion    ParentKind = "question"
	ParentSubQuestion ParentKind = "sub_question"
)

var ValidParentKinds = map[ParentKind]bool{
	ParentQuestion:    true,
	ParentSubQuestion: true,
}

// ParentRef identifies the owner of a requirement: exactly one of a
// question or a sub-question. Using a tagged pair instead of two nullable
// ids rules out "neither or both set" at the type level.
type ParentRef struct {
	Kind ParentKind `json:"kind"`
	ID   int64      `json:"id"`
}

func QuestionRef(id int64) ParentRef {
	return ParentRef{Kind: ParentQuestion, ID: id}
}

func SubQuestionRef(id int64) ParentRef {
	return ParentRef{Kind: ParentSubQuestion, ID: id}
}

func (p ParentRef) Valid() bool {
	return ValidParentKinds[p.Kind] && p.ID > 0
}

func (p ParentRef) String() string {
	return fmt.Sprintf("%s/%d", p.Kind, p.ID)
}

// ParseParentRef parses the "kind/id" form produced by String.
func ParseParentRef(s string) (ParentRef, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return ParentRef{}, fmt.Errorf("invalid parent ref %q", s)
	}
	kind := ParentKind(parts[0])
	if !ValidParentKinds[kind] {
		return ParentRef{}, fmt.Errorf("invalid parent kind %q", parts[0])
	}
	var id int64
	if _, err := fmt.Sscanf(parts[1], "%d", &id); err != nil || id <= 0 {
		return ParentRef{}, fmt.Errorf("invalid parent id %q", parts[1])
	}
	return ParentRef{Kind: kind, ID: id}, nil
}

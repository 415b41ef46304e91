package dynamodb

import (
	"fmt"
	"strings"
	"time"

	"brain2-canvas/internal/domain"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// elementItem is the single-table layout shared by all three kinds. Kind is
// always written so a record is never classified by which optional
// attributes it carries.
type elementItem struct {
	PK          string   `dynamodbav:"PK"`
	SK          string   `dynamodbav:"SK"`
	EntityType  string   `dynamodbav:"EntityType"`
	Kind        string   `dynamodbav:"Kind"`
	ID          string   `dynamodbav:"ID"`
	OwnerID     string   `dynamodbav:"OwnerID"`
	Summary     string   `dynamodbav:"Summary,omitempty"`
	Note        string   `dynamodbav:"Note,omitempty"`
	Mood        string   `dynamodbav:"Mood,omitempty"`
	Heading     string   `dynamodbav:"Heading,omitempty"`
	Description string   `dynamodbav:"Description,omitempty"`
	Purpose     string   `dynamodbav:"Purpose,omitempty"`
	WheelID     string   `dynamodbav:"WheelID,omitempty"`
	ChakraID    string   `dynamodbav:"ChakraID,omitempty"`
	X           *float64 `dynamodbav:"X,omitempty"`
	Y           *float64 `dynamodbav:"Y,omitempty"`
	CreatedAt   string   `dynamodbav:"CreatedAt"`
	UpdatedAt   string   `dynamodbav:"UpdatedAt"`
}

func ownerKey(ownerID string) string {
	return "USER#" + ownerID
}

func sortKeyPrefix(kind domain.Kind) string {
	return strings.ToUpper(string(kind)) + "#"
}

func sortKey(kind domain.Kind, id string) string {
	return sortKeyPrefix(kind) + id
}

func itemKey(ownerID string, kind domain.Kind, id string) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(struct {
		PK string `dynamodbav:"PK"`
		SK string `dynamodbav:"SK"`
	}{PK: ownerKey(ownerID), SK: sortKey(kind, id)})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func baseItem(kind domain.Kind, e *domain.Element) elementItem {
	it := elementItem{
		PK:         ownerKey(e.OwnerID),
		SK:         sortKey(kind, e.ID),
		EntityType: strings.ToUpper(string(kind)),
		Kind:       string(kind),
		ID:         e.ID,
		OwnerID:    e.OwnerID,
		CreatedAt:  formatTime(e.CreatedAt),
		UpdatedAt:  formatTime(e.UpdatedAt),
	}
	if e.Position != nil {
		x, y := e.Position.X, e.Position.Y
		it.X, it.Y = &x, &y
	}
	return it
}

func (it elementItem) element() domain.Element {
	e := domain.Element{
		ID:        it.ID,
		OwnerID:   it.OwnerID,
		CreatedAt: parseTime(it.CreatedAt),
		UpdatedAt: parseTime(it.UpdatedAt),
	}
	if it.X != nil && it.Y != nil {
		e.Position = &domain.Position{X: *it.X, Y: *it.Y}
	}
	return e
}

func dotItem(d *domain.Dot) elementItem {
	it := baseItem(domain.KindDot, &d.Element)
	it.Summary, it.Note, it.Mood = d.Summary, d.Note, d.Mood
	it.WheelID, it.ChakraID = d.WheelID(), d.ChakraID()
	return it
}

func wheelItem(w *domain.Wheel) elementItem {
	it := baseItem(domain.KindWheel, &w.Element)
	it.Heading, it.Description, it.ChakraID = w.Heading, w.Description, w.ChakraID
	return it
}

func chakraItem(c *domain.Chakra) elementItem {
	it := baseItem(domain.KindChakra, &c.Element)
	it.Heading, it.Purpose = c.Heading, c.Purpose
	return it
}

func (it elementItem) dot() (*domain.Dot, error) {
	if it.Kind != string(domain.KindDot) {
		return nil, fmt.Errorf("%w: item %s is a %q", domain.ErrInvalidKind, it.SK, it.Kind)
	}
	d := &domain.Dot{Element: it.element(), Summary: it.Summary, Note: it.Note, Mood: it.Mood}
	switch {
	case it.WheelID != "":
		d.Parent = &domain.ParentRef{Kind: domain.KindWheel, ID: it.WheelID}
	case it.ChakraID != "":
		d.Parent = &domain.ParentRef{Kind: domain.KindChakra, ID: it.ChakraID}
	}
	return d, nil
}

func (it elementItem) wheel() (*domain.Wheel, error) {
	if it.Kind != string(domain.KindWheel) {
		return nil, fmt.Errorf("%w: item %s is a %q", domain.ErrInvalidKind, it.SK, it.Kind)
	}
	return &domain.Wheel{Element: it.element(), Heading: it.Heading, Description: it.Description, ChakraID: it.ChakraID}, nil
}

func (it elementItem) chakra() (*domain.Chakra, error) {
	if it.Kind != string(domain.KindChakra) {
		return nil, fmt.Errorf("%w: item %s is a %q", domain.ErrInvalidKind, it.SK, it.Kind)
	}
	return &domain.Chakra{Element: it.element(), Heading: it.Heading, Purpose: it.Purpose}, nil
}

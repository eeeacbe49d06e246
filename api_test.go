package remold_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/remold"
)

// money encodes itself as "<cents> <currency>".
type money struct {
	Cents    int64
	Currency string
}

var (
	_ remold.DocumentMarshaler   = money{}
	_ remold.DocumentUnmarshaler = (*money)(nil)
	_ remold.Populated           = (*invoice)(nil)
)

func (m money) MarshalDocument() (any, error) {
	return fmt.Sprintf("%d %s", m.Cents, m.Currency), nil
}

func (m *money) UnmarshalDocument(doc any) error {
	s, ok := doc.(string)
	if !ok {
		return fmt.Errorf("money: want string, got %T", doc)
	}
	_, err := fmt.Sscanf(s, "%d %s", &m.Cents, &m.Currency)
	return err
}

type invoice struct {
	Number string    `doc:"number"`
	Total  money     `doc:"total"`
	Issued time.Time `doc:"issued,date"`
	Lines  []string  `doc:"lines"`
	Key    string    `doc:"-"`
}

func (i *invoice) DocumentPopulated() error {
	if i.Number == "" {
		return errors.New("invoice number required")
	}
	i.Key = "inv:" + i.Number
	return nil
}

func TestPublicAPI_Lifecycle(t *testing.T) {
	reg := remold.NewRegistry()
	err := remold.Declare[invoice](reg).
		Field("Lines").Expect("value.size() > 0").
		Done().
		Static("kind", func() any { return "invoice" }).Done().
		Err()
	if err != nil {
		t.Fatalf("Declare() error: %v", err)
	}

	ctx := context.Background()
	e := remold.NewEngine(remold.WithRegistry(reg))
	issued := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	in := invoice{
		Number: "A-1",
		Total:  money{Cents: 1999, Currency: "EUR"},
		Issued: issued,
		Lines:  []string{"widget"},
		Key:    "ignored",
	}

	out, err := e.Encode(ctx, in)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	doc := out.(*remold.Document)
	if got := strings.Join(doc.Keys(), ","); got != "kind,number,total,issued,lines" {
		t.Errorf("Keys() = %s", got)
	}
	if total, _ := doc.Get("total"); total != "1999 EUR" {
		t.Errorf("total = %#v, want 1999 EUR", total)
	}

	back, err := remold.DecodeAs[invoice](ctx, e, doc)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if back.Total != in.Total || !back.Issued.Equal(issued) || back.Key != "inv:A-1" {
		t.Errorf("Decode() = %+v", back)
	}

	bad := doc.Clone()
	bad.Set("number", "")
	if _, err := remold.DecodeAs[invoice](ctx, e, bad); err == nil || !strings.Contains(err.Error(), "invoice number required") {
		t.Errorf("Decode() error = %v, want populated failure", err)
	}

	empty := doc.Clone()
	empty.Set("lines", []any{})
	_, err = remold.DecodeAs[invoice](ctx, e, empty)
	var verr *remold.ValidationError
	if !errors.As(err, &verr) || verr.Fields[0] != "Lines" {
		t.Errorf("Decode() error = %v, want ValidationError on Lines", err)
	}
}

package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/luxesuite/luxeapi"
)

// Credits lists the purchasable credit packages.
func (s *Service) Credits(ctx context.Context) ([]Credit, error) {
	var raw []byte
	if err := s.get(ctx, "/api/credits", nil, &raw); err != nil {
		return nil, err
	}
	credits, err := decodeMaybeEnveloped[[]Credit](raw)
	if err != nil {
		return nil, err
	}
	return *credits, nil
}

// TopUpCredits starts a credit checkout. The body is JSON unless attachments
// are present, in which case it is sent as multipart with the shipping
// fields flattened to shipping[field].
func (s *Service) TopUpCredits(ctx context.Context, topUp TopUp) (*TopUpResult, error) {
	if topUp.CreditID == "" {
		return nil, validationError("credit_id", "credit is required")
	}
	if topUp.Quantity <= 0 {
		return nil, validationError("quantity", "quantity must be positive")
	}

	req := &luxeapi.Request{Method: http.MethodPost, Path: "/api/credits/top-up"}
	if len(topUp.Attachments) == 0 {
		req.JSON = topUp
	} else {
		form, err := topUpForm(topUp)
		if err != nil {
			return nil, err
		}
		req.Multipart = form
	}

	var raw []byte
	if err := s.sendOnce(ctx, req, &raw); err != nil {
		return nil, err
	}
	return decodeMaybeEnveloped[TopUpResult](raw)
}

func topUpForm(topUp TopUp) (*luxeapi.Multipart, error) {
	form := luxeapi.NewMultipart().
		Field("credit_id", topUp.CreditID.String()).
		Field("quantity", strconv.Itoa(topUp.Quantity))

	encoded, err := json.Marshal(topUp.Shipping)
	if err != nil {
		return nil, fmt.Errorf("encode shipping: %w", err)
	}
	var shipping map[string]string
	if err := json.Unmarshal(encoded, &shipping); err != nil {
		return nil, fmt.Errorf("encode shipping: %w", err)
	}
	for _, k := range sortedKeys(shipping) {
		form.Field("shipping["+k+"]", shipping[k])
	}

	for _, name := range sortedKeys(topUp.Attachments) {
		a := topUp.Attachments[name]
		if a.Filename == "" {
			continue
		}
		form.File(name, a.Filename, a.Data)
	}
	return form, nil
}

// Quote prices one credit package with the configured shipping fee.
func (s *Service) Quote(credit Credit) Quote {
	subtotal := float64(credit.Price)
	return Quote{
		Subtotal:    subtotal,
		ShippingFee: s.shippingFee,
		Total:       subtotal + s.shippingFee,
		Currency:    s.currency,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package dashboard

import (
	"context"
	"net/http"
	"strings"
)

// CheckReferenceCode asks whether an NFC reference code can be linked.
// An unknown code is a normal response with Valid=false.
func (s *Service) CheckReferenceCode(ctx context.Context, refCode string) (*RefCodeValidity, error) {
	refCode = strings.TrimSpace(refCode)
	if refCode == "" {
		return nil, validationError("ref_code", "reference code is required")
	}
	var out RefCodeValidity
	if err := s.send(ctx, http.MethodPost, "/api/nfc/check-validity", map[string]string{"ref_code": refCode}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LinkNFC binds a reference code to an authenticated product.
func (s *Service) LinkNFC(ctx context.Context, refCode string, productID int64) (*Result, error) {
	refCode = strings.TrimSpace(refCode)
	if refCode == "" {
		return nil, validationError("ref_code", "reference code is required")
	}
	body := map[string]any{
		"ref_code":                 refCode,
		"authenticated_product_id": productID,
	}
	var out Result
	if err := s.send(ctx, http.MethodPatch, "/api/nfc/link", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

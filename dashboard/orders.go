package dashboard

import (
	"context"
	"net/http"
	"strconv"
)

// Orders returns one page of credit orders, optionally filtered by search.
func (s *Service) Orders(ctx context.Context, page int, search string) (*OrderPage, error) {
	var out envelope[OrderPage]
	if err := s.get(ctx, "/api/orders", pageQuery(page, search), &out); err != nil {
		return nil, err
	}
	if out.Data.Data == nil {
		out.Data.Data = []Order{}
	}
	return &out.Data, nil
}

// MarkShipmentDelivered flags a shipment as delivered.
func (s *Service) MarkShipmentDelivered(ctx context.Context, shipmentID int64) (*Result, error) {
	var out Result
	path := pathID("/api/shipments", strconv.FormatInt(shipmentID, 10), "/deliver")
	if err := s.send(ctx, http.MethodPatch, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//go:build integration

package integration

import (
	"net/http"
	"testing"
)

type reviewRequest struct {
	PointsToRedeem int `json:"points_to_redeem"`
}

type addressRequest struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type paymentRequest struct {
	Method string `json:"method"`
}

type balanceResponse struct {
	Balance int `json:"balance"`
}

// TestCheckout_FullFlow walks the seeded loyalty user through the complete
// pipeline: cart, review with redemption, address, payment, confirm.
func TestCheckout_FullFlow(t *testing.T) {
	user := "loyal-user" // seeded with 500 points

	resp := doPostAs(t, "/cart/items", addItemRequest{
		ProductID: "jersey-madrid-home",
		Quantity:  1,
		Size:      "M",
	}, user)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add item: expected 201, got %d", resp.StatusCode)
	}

	reviewResp := doPostAs(t, "/checkout/review", reviewRequest{PointsToRedeem: 1000}, user)
	defer reviewResp.Body.Close()
	if reviewResp.StatusCode != http.StatusOK {
		t.Fatalf("review: expected 200, got %d", reviewResp.StatusCode)
	}
	attempt := decodeJSON[attemptResponse](t, reviewResp)

	if attempt.State != "reviewing" {
		t.Errorf("state: got %q, want reviewing", attempt.State)
	}
	if attempt.Subtotal != "89.99" {
		t.Errorf("subtotal: got %q, want 89.99", attempt.Subtotal)
	}
	// Below the free shipping threshold? 89.99 >= 50, so shipping is free.
	if attempt.ShippingCost != "0" && attempt.ShippingCost != "0.00" {
		t.Errorf("shipping: got %q, want 0", attempt.ShippingCost)
	}
	if attempt.Tax != "18.9" && attempt.Tax != "18.90" {
		t.Errorf("tax: got %q, want 18.90", attempt.Tax)
	}
	// 1000 requested, clamped to the 500 point balance.
	if attempt.PointsToRedeem != 500 {
		t.Errorf("points to redeem: got %d, want 500", attempt.PointsToRedeem)
	}
	if attempt.Discount != "5" && attempt.Discount != "5.00" {
		t.Errorf("discount: got %q, want 5.00", attempt.Discount)
	}
	if attempt.Total != "103.89" {
		t.Errorf("total: got %q, want 103.89", attempt.Total)
	}
	if attempt.PointsEarned != 1038 {
		t.Errorf("points earned: got %d, want 1038", attempt.PointsEarned)
	}

	addrResp := doPostAs(t, "/checkout/address", addressRequest{
		Street:     "Calle Mayor 1",
		City:       "Madrid",
		PostalCode: "28001",
		Country:    "Spain",
	}, user)
	addrResp.Body.Close()
	if addrResp.StatusCode != http.StatusOK {
		t.Fatalf("address: expected 200, got %d", addrResp.StatusCode)
	}

	payResp := doPostAs(t, "/checkout/payment", paymentRequest{Method: "credit_card"}, user)
	payResp.Body.Close()
	if payResp.StatusCode != http.StatusOK {
		t.Fatalf("payment: expected 200, got %d", payResp.StatusCode)
	}

	confirmResp := doPostAs(t, "/checkout/confirm", nil, user)
	defer confirmResp.Body.Close()
	if confirmResp.StatusCode != http.StatusCreated {
		t.Fatalf("confirm: expected 201, got %d", confirmResp.StatusCode)
	}
	o := decodeJSON[orderResponse](t, confirmResp)

	if o.ID != attempt.OrderID {
		t.Errorf("order id: got %q, want %q", o.ID, attempt.OrderID)
	}
	if o.Status != "pending" {
		t.Errorf("status: got %q, want pending", o.Status)
	}
	if o.PointsRedeemed != 500 {
		t.Errorf("points redeemed: got %d, want 500", o.PointsRedeemed)
	}

	// The loyalty balance settled: 500 - 500 + 1038.
	balResp := doGetAs(t, "/loyalty/balance", user)
	defer balResp.Body.Close()
	bal := decodeJSON[balanceResponse](t, balResp)
	if bal.Balance != 1038 {
		t.Errorf("balance: got %d, want 1038", bal.Balance)
	}

	// The cart is cleared.
	cartResp := doGetAs(t, "/cart", user)
	defer cartResp.Body.Close()
	c := decodeJSON[cartResponse](t, cartResp)
	if len(c.Items) != 0 {
		t.Errorf("expected cleared cart, got %d lines", len(c.Items))
	}

	// The order shows up in the user's history.
	ordersResp := doGetAs(t, "/orders", user)
	defer ordersResp.Body.Close()
	orders := decodeJSON[[]orderResponse](t, ordersResp)
	if len(orders) != 1 || orders[0].ID != o.ID {
		t.Errorf("order history: got %+v", orders)
	}
}

func TestCheckout_EmptyCartRejected(t *testing.T) {
	resp := doPostAs(t, "/checkout/review", reviewRequest{}, "fresh-user-1")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCheckout_ConfirmWithoutPaymentRejected(t *testing.T) {
	user := "fresh-user-2"

	resp := doPostAs(t, "/cart/items", addItemRequest{
		ProductID: "scarf-madrid",
		Quantity:  1,
		Size:      "ONE",
	}, user)
	resp.Body.Close()

	reviewResp := doPostAs(t, "/checkout/review", reviewRequest{}, user)
	reviewResp.Body.Close()
	if reviewResp.StatusCode != http.StatusOK {
		t.Fatalf("review: expected 200, got %d", reviewResp.StatusCode)
	}

	confirmResp := doPostAs(t, "/checkout/confirm", nil, user)
	defer confirmResp.Body.Close()
	if confirmResp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", confirmResp.StatusCode)
	}
}

func TestCheckout_ShippingBelowThreshold(t *testing.T) {
	user := "fresh-user-3"

	resp := doPostAs(t, "/cart/items", addItemRequest{
		ProductID: "scarf-madrid",
		Quantity:  1,
		Size:      "ONE",
	}, user)
	resp.Body.Close()

	reviewResp := doPostAs(t, "/checkout/review", reviewRequest{}, user)
	defer reviewResp.Body.Close()
	attempt := decodeJSON[attemptResponse](t, reviewResp)

	// 19.99 is under the 50 threshold: flat 5.00 fee, tax on the sum.
	if attempt.ShippingCost != "5" && attempt.ShippingCost != "5.00" {
		t.Errorf("shipping: got %q, want 5.00", attempt.ShippingCost)
	}
	if attempt.Tax != "5.25" {
		t.Errorf("tax: got %q, want 5.25", attempt.Tax)
	}
	if attempt.Total != "30.24" {
		t.Errorf("total: got %q, want 30.24", attempt.Total)
	}
}

func TestOrders_AdminStatusTransition(t *testing.T) {
	user := "fresh-user-4"

	resp := doPostAs(t, "/cart/items", addItemRequest{
		ProductID: "hoodie-barcelona",
		Quantity:  1,
		Size:      "L",
	}, user)
	resp.Body.Close()

	reviewResp := doPostAs(t, "/checkout/review", reviewRequest{}, user)
	reviewResp.Body.Close()
	addrResp := doPostAs(t, "/checkout/address", addressRequest{
		Street: "Av. Diagonal 10", City: "Barcelona", PostalCode: "08019",
	}, user)
	addrResp.Body.Close()
	payResp := doPostAs(t, "/checkout/payment", paymentRequest{Method: "paypal"}, user)
	payResp.Body.Close()

	confirmResp := doPostAs(t, "/checkout/confirm", nil, user)
	o := decodeJSON[orderResponse](t, confirmResp)
	confirmResp.Body.Close()

	// Non-admin cannot move the order along.
	denied := doRequest(t, http.MethodPatch, "/orders/"+o.ID+"/status",
		map[string]string{"status": "processing"}, user, false)
	denied.Body.Close()
	if denied.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", denied.StatusCode)
	}

	// Admin can.
	ok := doRequest(t, http.MethodPatch, "/orders/"+o.ID+"/status",
		map[string]string{"status": "processing"}, "admin-user", true)
	defer ok.Body.Close()
	if ok.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", ok.StatusCode)
	}
	updated := decodeJSON[orderResponse](t, ok)
	if updated.Status != "processing" {
		t.Errorf("status: got %q, want processing", updated.Status)
	}

	// Backwards transition is rejected.
	back := doRequest(t, http.MethodPatch, "/orders/"+o.ID+"/status",
		map[string]string{"status": "pending"}, "admin-user", true)
	defer back.Body.Close()
	if back.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", back.StatusCode)
	}
}

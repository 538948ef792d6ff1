package domain

import "testing"

func TestRoleOf(t *testing.T) {
	us := "7656-us"
	cases := []struct {
		name    string
		listing Listing
		want    Role
	}{
		{"we are the seller", Listing{Seller: &Party{SteamID: us}}, RoleSeller},
		{"someone else sells", Listing{Seller: &Party{SteamID: "7656-other"}}, RoleBuyer},
		{"no seller attached", Listing{}, RoleBuyer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RoleOf(tc.listing, us); got != tc.want {
				t.Fatalf("RoleOf = %v, want %v", got, tc.want)
			}
		})
	}

	// An empty own id must never claim the seller side.
	if got := RoleOf(Listing{Seller: &Party{SteamID: ""}}, ""); got != RoleBuyer {
		t.Fatal("empty ids matched as seller")
	}
}

func TestItemAsset(t *testing.T) {
	item := Item{ExternalID: "730|2|123456"}
	asset, err := item.Asset()
	if err != nil {
		t.Fatalf("Asset: %v", err)
	}
	if asset.AppID != "730" || asset.ContextID != "2" || asset.AssetID != "123456" {
		t.Fatalf("asset = %+v", asset)
	}

	if _, err := (Item{ExternalID: "garbage"}).Asset(); err == nil {
		t.Fatal("malformed external id accepted")
	}
}

func TestItemMarkup(t *testing.T) {
	if got := (Item{Price: 480, AskPrice: 500}).Markup(); got < 1.041 || got > 1.042 {
		t.Fatalf("markup = %v", got)
	}
	if got := (Item{Price: 0, AskPrice: 500}).Markup(); got != 0 {
		t.Fatalf("markup with unknown reference = %v, want 0", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []ListingStatus{StatusReceived, StatusCanceledSystem, StatusFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ListingStatus{StatusOpen, StatusAsked, StatusAnswered, StatusSent} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

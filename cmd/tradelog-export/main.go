// Command tradelog-export converts the append-only JSONL transaction logs
// into CSV for spreadsheet analysis.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
	"github.com/easton36/clashgg-sniper/internal/tradelog"
)

func main() {
	kind := flag.String("kind", "purchases", "which log to export: purchases or sales")
	in := flag.String("in", "", "input JSONL path (defaults per kind)")
	out := flag.String("out", "", "output CSV path, defaults to stdout")
	flag.Parse()

	if *in == "" {
		switch *kind {
		case "purchases":
			*in = "logs/purchases.jsonl"
		case "sales":
			*in = "logs/sales.jsonl"
		}
	}

	dst := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fatalf("create %s: %v", *out, err)
		}
		defer f.Close()
		dst = f
	}

	w := csv.NewWriter(dst)
	defer w.Flush()

	var err error
	switch *kind {
	case "purchases":
		err = exportPurchases(*in, w)
	case "sales":
		err = exportSales(*in, w)
	default:
		err = fmt.Errorf("unknown kind %q", *kind)
	}
	if err != nil {
		fatalf("export: %v", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fatalf("write csv: %v", err)
	}
}

func exportPurchases(path string, w *csv.Writer) error {
	recs, err := tradelog.ReadRecords[domain.PurchaseRecord](path)
	if err != nil {
		return err
	}
	header := []string{
		"recordId", "listingId", "itemName", "assetId",
		"price", "askPrice", "askPriceUsd", "fairValue", "fairRatio", "markup",
		"sellerName", "sellerSteamId", "purchasedAt", "receivedAt",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.RecordID,
			strconv.FormatInt(r.ListingID, 10),
			r.ItemName,
			r.AssetID,
			strconv.FormatInt(r.Price, 10),
			strconv.FormatInt(r.AskPrice, 10),
			strconv.FormatInt(r.AskPriceUSD, 10),
			strconv.FormatInt(r.FairValue, 10),
			strconv.FormatFloat(r.FairRatio, 'f', 4, 64),
			strconv.FormatFloat(r.Markup, 'f', 4, 64),
			r.SellerName,
			r.SellerID,
			stamp(r.PurchasedAt),
			stamp(r.ReceivedAt),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func exportSales(path string, w *csv.Writer) error {
	recs, err := tradelog.ReadRecords[domain.SaleRecord](path)
	if err != nil {
		return err
	}
	header := []string{
		"recordId", "listingId", "itemName", "assetId",
		"askPrice", "offerId", "buyerSteamId", "soldAt", "receivedAt",
		"boughtForAskPrice", "profit",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		boughtFor, profit := "", ""
		if r.BoughtFor != nil {
			boughtFor = strconv.FormatInt(r.BoughtFor.AskPrice, 10)
			profit = strconv.FormatInt(r.AskPrice-r.BoughtFor.AskPrice, 10)
		}
		row := []string{
			r.RecordID,
			strconv.FormatInt(r.ListingID, 10),
			r.ItemName,
			r.AssetID,
			strconv.FormatInt(r.AskPrice, 10),
			r.OfferID,
			r.BuyerID,
			stamp(r.SoldAt),
			stamp(r.ReceivedAt),
			boughtFor,
			profit,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tradelog-export: "+format+"\n", args...)
	os.Exit(1)
}

package grpctransport

import (
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctiontee/sfeservice"
)

func TestJSONCodec_RoundTrip(t *testing.T) {
	req := &sfeservice.SelectAdRawRequest{
		ProtectedAuctionCiphertext: []byte("ciphertext"),
		AuctionConfig: sfeservice.AuctionConfig{
			SellerSignals: "signals",
		},
	}

	data, err := Codec.Marshal(req)
	check.NoError(t, err)

	out := new(sfeservice.SelectAdRawRequest)
	check.NoError(t, Codec.Unmarshal(data, out))
	check.Equal(t, "ciphertext", string(out.ProtectedAuctionCiphertext))
	check.Equal(t, "signals", out.AuctionConfig.SellerSignals)
}

func TestJSONCodec_Name(t *testing.T) {
	check.Equal(t, "json", Codec.Name())
}

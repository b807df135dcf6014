package ledgerrpc

import (
	"testing"
	"time"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	if c == nil {
		t.Fatal("json codec not registered")
	}
	at := time.Date(2024, 3, 5, 10, 0, 0, 42, time.UTC)
	data, err := c.Marshal(&StatementRequest{AccountID: 7, DateFrom: timestamppb.New(at)})
	if err != nil {
		t.Fatal(err)
	}
	var got StatementRequest
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.AccountID != 7 || !got.DateFrom.AsTime().Equal(at) || got.DateTo != nil {
		t.Fatalf("got=%+v", &got)
	}
}

func TestServiceDesc(t *testing.T) {
	if len(ServiceDesc.Methods) != 10 {
		t.Fatalf("methods=%d", len(ServiceDesc.Methods))
	}
	if FullMethod("Deposit") != "/ledger.LedgerService/Deposit" {
		t.Fatalf("full method=%s", FullMethod("Deposit"))
	}
}

package receipt

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"go-pos-api/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedTxn() *model.Transaction {
	done := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	txn := &model.Transaction{
		Number:        "TRX-20260314-ABC123",
		Status:        model.TxCompleted,
		Total:         45000,
		PaymentMethod: model.PayCash,
		PaymentAmount: 50000,
		ChangeAmount:  5000,
		CompletedAt:   &done,
		Cashier:       &model.User{FullName: "Sari"},
		Items: []model.TransactionItem{
			{ProductID: uuid.New(), ProductName: "Kopi Susu", SKU: "KS-01", UnitPrice: 15000, Quantity: 2, Subtotal: 30000},
			{ProductID: uuid.New(), ProductName: "Roti Bakar", SKU: "RB-01", UnitPrice: 15000, Quantity: 1, Subtotal: 15000},
		},
	}
	txn.ID = uuid.New()
	return txn
}

func TestFromTransaction(t *testing.T) {
	txn := completedTxn()
	data, err := FromTransaction(&model.Tenant{Name: "Warung Maju"}, txn)
	require.NoError(t, err)

	assert.Equal(t, txn.ID, data.TransactionID)
	assert.Equal(t, "Warung Maju", data.StoreName)
	assert.Equal(t, "Sari", data.Cashier)
	assert.Equal(t, int64(5000), data.ChangeAmount)
	require.Len(t, data.Items, 2)
	assert.Equal(t, "Kopi Susu", data.Items[0].Name)
}

func TestFromTransactionRequiresCompletion(t *testing.T) {
	txn := completedTxn()
	txn.Status = model.TxPending
	txn.CompletedAt = nil

	_, err := FromTransaction(nil, txn)
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func TestTextRenderer(t *testing.T) {
	data, err := FromTransaction(&model.Tenant{Name: "Warung Maju", Phone: "0812"}, completedTxn())
	require.NoError(t, err)

	art, err := TextRenderer{Width: 32}.Render(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, "receipt-TRX-20260314-ABC123.txt", art.Filename)
	assert.True(t, strings.HasPrefix(art.ContentType, "text/plain"))

	body := string(art.Body)
	assert.Contains(t, body, "Warung Maju")
	assert.Contains(t, body, "45.000")
	assert.Contains(t, body, "50.000")
	assert.Contains(t, body, "5.000")
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 32, line)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:             "0",
		999:           "999",
		1000:          "1.000",
		45000:         "45.000",
		1250000:       "1.250.000",
		-5000:         "-5.000",
		12345678:      "12.345.678",
		math.MaxInt64: "9.223.372.036.854.775.807",
		math.MinInt64: "-9.223.372.036.854.775.808",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(in), in)
	}
}

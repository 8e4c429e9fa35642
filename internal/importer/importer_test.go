package importer

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"proptrack/server/internal/models"
)

// MockGeocoder is a mock implementation of Geocoder
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, location string) (float64, float64, error) {
	args := m.Called(ctx, location)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertProperties(ctx context.Context, properties []*models.Property) error {
	args := m.Called(ctx, properties)
	return args.Error(0)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

const header = "name,price_per_month,location,rooms,bathrooms,square_meters,service_charge,cleaning_fee,commission_charge,url\n"

func csvRow(name, location string) string {
	return name + ",1200," + location + ",2,1,,,,,https://example.com/" + name + "\n"
}

func TestImport_AllRowsValid(t *testing.T) {
	geocoder := &MockGeocoder{}
	store := &MockStore{}
	importer := NewImporter(geocoder, store, quietLogger(), 1)

	payload := header +
		"Loft,1500,Main Street 1,2,1,75,100,50,75,https://example.com/1\n" +
		csvRow("Studio", "Main Street 2") +
		csvRow("House", "Main Street 3")

	geocoder.On("Geocode", mock.Anything, mock.AnythingOfType("string")).Return(52.37, 4.89, nil)
	store.On("InsertProperties", mock.Anything, mock.MatchedBy(func(props []*models.Property) bool {
		return len(props) == 3
	})).Return(nil).Once()

	result, err := importer.Import(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)
	assert.False(t, result.Rejected())
	require.Len(t, result.Properties, 3)

	for _, p := range result.Properties {
		assert.Equal(t, models.StatusAvailable, p.Status)
		assert.False(t, p.IsFavorite)
		assert.False(t, p.IsApproximated)
		assert.InDelta(t, 52.37, p.Latitude, 0.0001)
	}

	first := result.Properties[0]
	assert.Equal(t, "Loft", first.Name)
	assert.Equal(t, 1500.0, first.PricePerMonth)
	require.NotNil(t, first.SquareMeters)
	assert.Equal(t, 75.0, *first.SquareMeters)
	require.NotNil(t, first.CommissionCharge)
	assert.Equal(t, 75.0, *first.CommissionCharge)

	second := result.Properties[1]
	assert.Nil(t, second.SquareMeters)
	assert.Nil(t, second.ServiceCharge)
	assert.Nil(t, second.CleaningFee)
	assert.Nil(t, second.CommissionCharge)

	store.AssertNumberOfCalls(t, "InsertProperties", 1)
	geocoder.AssertNumberOfCalls(t, "Geocode", 3)
}

func TestImport_OneInvalidRowRejectsBatch(t *testing.T) {
	geocoder := &MockGeocoder{}
	store := &MockStore{}
	importer := NewImporter(geocoder, store, quietLogger(), 1)

	payload := header +
		csvRow("One", "Street 1") +
		",abc,Street 2,2,1,,,,,https://example.com/2\n" +
		csvRow("Three", "Street 3") +
		csvRow("Four", "Street 4") +
		csvRow("Five", "Street 5")

	geocoder.On("Geocode", mock.Anything, mock.AnythingOfType("string")).Return(1.0, 2.0, nil)

	result, err := importer.Import(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)
	require.True(t, result.Rejected())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, []string{
		"name is required and must be a string",
		"price_per_month must be a valid number",
	}, result.Errors[0].Errors)
	assert.Empty(t, result.Properties)

	store.AssertNotCalled(t, "InsertProperties", mock.Anything, mock.Anything)
	geocoder.AssertNotCalled(t, "Geocode", mock.Anything, "Street 2")
}

func TestImport_GeocodeFailure(t *testing.T) {
	geocoder := &MockGeocoder{}
	store := &MockStore{}
	importer := NewImporter(geocoder, store, quietLogger(), 1)

	payload := header + csvRow("One", "Street 1") + csvRow("Two", "Nowhere")

	geocoder.On("Geocode", mock.Anything, "Street 1").Return(1.0, 2.0, nil)
	geocoder.On("Geocode", mock.Anything, "Nowhere").Return(0.0, 0.0, errors.New("no results"))

	result, err := importer.Import(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, []models.ValidationError{
		{Row: 2, Errors: []string{"Failed to geocode location"}},
	}, result.Errors)

	store.AssertNotCalled(t, "InsertProperties", mock.Anything, mock.Anything)
}

func TestImport_StructuralErrors(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantRows []int
	}{
		{
			name:     "Too few columns",
			payload:  header + "Loft,1500,Main Street 1\n",
			wantRows: []int{1},
		},
		{
			name:     "Too many columns",
			payload:  header + csvRow("Ok", "Street 1") + "a,1,b,2,1,,,,,https://x.example,extra\n",
			wantRows: []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geocoder := &MockGeocoder{}
			store := &MockStore{}
			geocoder.On("Geocode", mock.Anything, mock.Anything).Return(1.0, 2.0, nil)

			result, err := NewImporter(geocoder, store, quietLogger(), 1).
				Import(context.Background(), strings.NewReader(tt.payload))
			require.NoError(t, err)
			require.Len(t, result.Errors, len(tt.wantRows))
			for i, row := range tt.wantRows {
				assert.Equal(t, row, result.Errors[i].Row)
				assert.Equal(t, []string{"Invalid number of columns"}, result.Errors[i].Errors)
			}
			store.AssertNotCalled(t, "InsertProperties", mock.Anything, mock.Anything)
		})
	}
}

func TestImport_ErrorsOrderedByRow(t *testing.T) {
	geocoder := &MockGeocoder{}
	store := &MockStore{}
	importer := NewImporter(geocoder, store, quietLogger(), 4)

	payload := header +
		csvRow("One", "Unknown 1") +
		"short,row\n" +
		csvRow("Three", "Unknown 3") +
		",1,Street 4,2,1,,,,,https://example.com\n"

	geocoder.On("Geocode", mock.Anything, mock.Anything).Return(0.0, 0.0, errors.New("boom"))

	result, err := importer.Import(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, result.Errors, 4)
	for i, verr := range result.Errors {
		assert.Equal(t, i+1, verr.Row)
	}
}

func TestImport_BlankLinesAndWhitespace(t *testing.T) {
	geocoder := &MockGeocoder{}
	store := &MockStore{}
	importer := NewImporter(geocoder, store, quietLogger(), 1)

	payload := "\ufeff name , price_per_month,location,rooms,bathrooms,square_meters,service_charge,cleaning_fee,commission_charge,url\n" +
		"  Loft , 900 , Canal Street 5 ,1,1,,,,, https://example.com/loft \n" +
		"\n"

	geocoder.On("Geocode", mock.Anything, "Canal Street 5").Return(1.0, 2.0, nil)
	store.On("InsertProperties", mock.Anything, mock.Anything).Return(nil)

	result, err := importer.Import(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, result.Properties, 1)
	assert.Equal(t, "Loft", result.Properties[0].Name)
	assert.Equal(t, 900.0, result.Properties[0].PricePerMonth)
	assert.Equal(t, "https://example.com/loft", result.Properties[0].URL)
}

func TestImport_HeaderOnly(t *testing.T) {
	geocoder := &MockGeocoder{}
	store := &MockStore{}

	result, err := NewImporter(geocoder, store, quietLogger(), 1).
		Import(context.Background(), strings.NewReader(header))
	require.NoError(t, err)
	assert.False(t, result.Rejected())
	assert.Empty(t, result.Properties)
	store.AssertNotCalled(t, "InsertProperties", mock.Anything, mock.Anything)
}

func TestImport_EmptyFile(t *testing.T) {
	_, err := NewImporter(&MockGeocoder{}, &MockStore{}, quietLogger(), 1).
		Import(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestImport_StoreFailure(t *testing.T) {
	geocoder := &MockGeocoder{}
	store := &MockStore{}
	storeErr := errors.New("disk full")

	geocoder.On("Geocode", mock.Anything, mock.Anything).Return(1.0, 2.0, nil)
	store.On("InsertProperties", mock.Anything, mock.Anything).Return(storeErr)

	_, err := NewImporter(geocoder, store, quietLogger(), 1).
		Import(context.Background(), strings.NewReader(header+csvRow("One", "Street 1")))
	assert.ErrorIs(t, err, storeErr)
}

func TestImport_Cancelled(t *testing.T) {
	geocoder := &MockGeocoder{}
	store := &MockStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	geocoder.On("Geocode", mock.Anything, mock.Anything).Return(0.0, 0.0, context.Canceled)

	_, err := NewImporter(geocoder, store, quietLogger(), 1).
		Import(ctx, strings.NewReader(header+csvRow("One", "Street 1")))
	assert.ErrorIs(t, err, context.Canceled)
	store.AssertNotCalled(t, "InsertProperties", mock.Anything, mock.Anything)
}

// trackingGeocoder records how many lookups run at the same time and the
// order in which they start.
type trackingGeocoder struct {
	inFlight    int32
	maxInFlight int32

	mu    sync.Mutex
	order []string
}

func (g *trackingGeocoder) Geocode(ctx context.Context, location string) (float64, float64, error) {
	current := atomic.AddInt32(&g.inFlight, 1)
	defer atomic.AddInt32(&g.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&g.maxInFlight)
		if current <= seen || atomic.CompareAndSwapInt32(&g.maxInFlight, seen, current) {
			break
		}
	}

	g.mu.Lock()
	g.order = append(g.order, location)
	g.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	return 1, 2, nil
}

func TestImport_SequentialGeocoding(t *testing.T) {
	geocoder := &trackingGeocoder{}
	store := &MockStore{}
	store.On("InsertProperties", mock.Anything, mock.Anything).Return(nil)

	payload := header
	var want []string
	for _, loc := range []string{"A 1", "B 2", "C 3", "D 4", "E 5"} {
		payload += csvRow("Row", loc)
		want = append(want, loc)
	}

	result, err := NewImporter(geocoder, store, quietLogger(), 1).
		Import(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)
	assert.Len(t, result.Properties, 5)
	assert.Equal(t, int32(1), atomic.LoadInt32(&geocoder.maxInFlight))
	assert.Equal(t, want, geocoder.order)
}

func TestImport_BoundedConcurrency(t *testing.T) {
	geocoder := &trackingGeocoder{}
	store := &MockStore{}
	store.On("InsertProperties", mock.Anything, mock.Anything).Return(nil)

	payload := header
	for i := 0; i < 12; i++ {
		payload += csvRow("Row", "Street "+string(rune('A'+i)))
	}

	result, err := NewImporter(geocoder, store, quietLogger(), 3).
		Import(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)
	assert.Len(t, result.Properties, 12)
	assert.LessOrEqual(t, atomic.LoadInt32(&geocoder.maxInFlight), int32(3))
}

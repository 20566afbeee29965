package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPersistence_ExpiresAndPurges(t *testing.T) {
	store := NewMemoryStore()
	p := NewLocalPersistence(store, 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.Now = func() time.Time { return now }

	id := Anonymous("anon-1")
	c := Reduce(Cart{}, AddItem{Item: item("A", 2, 100), At: now.UnixMilli()})
	require.NoError(t, p.Save(id, c))

	now = now.Add(DefaultLocalTTL)
	got, ok, err := p.Load(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), got.Subtotal)

	now = now.Add(time.Millisecond)
	_, ok, err = p.Load(id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(id.Key())
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalPersistence_ExpiryStampedAtWrite(t *testing.T) {
	p := NewLocalPersistence(NewMemoryStore(), time.Hour)
	now := time.Now()
	p.Now = func() time.Time { return now }
	id := User("u1")

	require.NoError(t, p.Save(id, Cart{Items: []Item{}}))
	now = now.Add(50 * time.Minute)
	require.NoError(t, p.Save(id, Cart{Items: []Item{}}))
	now = now.Add(50 * time.Minute)

	_, ok, err := p.Load(id)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalPersistence_CorruptEntryTreatedAsAbsent(t *testing.T) {
	store := NewMemoryStore()
	p := NewLocalPersistence(store, time.Hour)
	id := Anonymous("x")
	require.NoError(t, store.Set(id.Key(), []byte("{not json")))

	_, ok, err := p.Load(id)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = store.Get(id.Key())
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalPersistence_NormalizesOnLoad(t *testing.T) {
	store := NewMemoryStore()
	p := NewLocalPersistence(store, time.Hour)
	id := Anonymous("x")
	raw := `{"cart":{"items":[{"product_id":"A","unit_price":100,"quantity":2}],"subtotal":1,"item_count":99},"expires_at":` +
		"9999999999999}"
	require.NoError(t, store.Set(id.Key(), []byte(raw)))

	c, ok, err := p.Load(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), c.Subtotal)
	assert.Equal(t, 2, c.ItemCount)
}

func TestFileStore(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Get("a:1")
	assert.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, fs.Set("a:1", []byte("one")))
	require.NoError(t, fs.Set("a:1", []byte("two")))
	b, err := fs.Get("a:1")
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))

	require.NoError(t, fs.Delete("a:1"))
	require.NoError(t, fs.Delete("a:1"))
	_, err = fs.Get("a:1")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestIdentity_KeyNamespaces(t *testing.T) {
	assert.NotEqual(t, Anonymous("42").Key(), User("42").Key())
	assert.True(t, Identity{}.IsZero())
}

func TestStaticProvider_KeepsLatest(t *testing.T) {
	p := NewStaticProvider(Anonymous("a"))
	ch := p.Changes()
	p.Set(User("u1"))
	p.Set(User("u2"))

	assert.Equal(t, User("u2"), <-ch)
	assert.Equal(t, User("u2"), p.Current())
}

package projection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/mathroom/internal/models"
	"github.com/iudanet/mathroom/internal/transport"
)

func TestProjection_CurrentIsEmptyInitially(t *testing.T) {
	p := New()
	v := p.Current()

	assert.Equal(t, uint64(0), v.Version)
	assert.NotNil(t, v.Expressions)
	assert.Empty(t, v.Expressions)
	assert.Empty(t, v.Peers)
	assert.Equal(t, transport.StateDisconnected, v.Status.State)
}

func TestProjection_PublishAssignsVersion(t *testing.T) {
	p := New()

	first := p.Publish(View{Expressions: []models.Expression{{ID: "e1"}}, Version: 42})
	second := p.Publish(View{Expressions: []models.Expression{{ID: "e1"}, {ID: "e2"}}})

	assert.Equal(t, uint64(1), first.Version, "Caller-provided version is ignored")
	assert.Equal(t, uint64(2), second.Version)
	assert.Equal(t, second, p.Current())
}

func TestProjection_ViewsAreCopies(t *testing.T) {
	p := New()
	exprs := []models.Expression{{ID: "e1", Text: "y=x"}}
	p.Publish(View{Expressions: exprs})

	exprs[0].Text = "changed by publisher"
	got := p.Current()
	assert.Equal(t, "y=x", got.Expressions[0].Text)

	got.Expressions[0].Text = "changed by reader"
	assert.Equal(t, "y=x", p.Current().Expressions[0].Text)
}

func TestProjection_SubscribeReceivesCurrentThenChanges(t *testing.T) {
	p := New()
	p.Publish(View{Status: transport.Status{State: transport.StateConnecting}})

	ch, cancel := p.Subscribe()
	defer cancel()

	v := <-ch
	assert.Equal(t, uint64(1), v.Version)
	assert.Equal(t, transport.StateConnecting, v.Status.State)

	p.Publish(View{Status: transport.Status{State: transport.StateConnected, Peers: 2}})
	select {
	case v = <-ch:
		assert.Equal(t, "connected(2)", v.Status.String())
	case <-time.After(time.Second):
		t.Fatal("no view delivered")
	}
}

func TestProjection_BurstIsCoalesced(t *testing.T) {
	p := New()
	ch, cancel := p.Subscribe()
	defer cancel()
	<-ch

	for i := 0; i < 100; i++ {
		p.Publish(View{Expressions: make([]models.Expression, i+1)})
	}

	v := <-ch
	assert.Equal(t, uint64(100), v.Version, "Final state is never dropped")
	assert.Len(t, v.Expressions, 100)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected stale view %d", extra.Version)
	default:
	}
}

func TestProjection_CancelClosesChannel(t *testing.T) {
	p := New()
	ch, cancel := p.Subscribe()
	<-ch

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	// Публикация после отписки не паникует
	p.Publish(View{})
}

func TestProjection_CloseEndsAllSubscriptions(t *testing.T) {
	p := New()
	ch1, cancel1 := p.Subscribe()
	ch2, _ := p.Subscribe()

	p.Close()
	cancel1()

	drain := func(ch <-chan View) bool {
		for range ch {
		}
		return true
	}
	assert.True(t, drain(ch1))
	assert.True(t, drain(ch2))
}

func TestProjection_ConcurrentReaders(t *testing.T) {
	p := New()
	const readers = 8

	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			ch, cancel := p.Subscribe()
			defer cancel()
			for v := range ch {
				assert.Len(t, v.Expressions, int(v.Version))
				if v.Version == 50 {
					return
				}
			}
		}()
	}

	exprs := make([]models.Expression, 0, 50)
	for i := 0; i < 50; i++ {
		exprs = append(exprs, models.Expression{ID: string(rune('a' + i%26))})
		p.Publish(View{Expressions: exprs})
	}
	wg.Wait()
}

package logistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		kind     Kind
		from, to Status
		want     bool
	}{
		{KindOrder, StatusPending, StatusAccepted, true},
		{KindOrder, StatusPending, StatusCompleted, false},
		{KindOrder, StatusCompleted, StatusCancelled, false},
		{KindServiceRequest, StatusApproved, StatusDone, true},
		{KindServiceRequest, StatusRejected, StatusApproved, false},
		{KindJobOrder, StatusScheduled, StatusInTransit, true},
		{KindJobOrder, StatusInTransit, StatusCancelled, false},
		{KindPricingRequest, StatusQuoted, StatusClosed, true},
		{KindPricingRequest, StatusPending, StatusAccepted, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.kind, tc.from, tc.to), "%s %s->%s", tc.kind, tc.from, tc.to)
	}
}

func TestStatusesStartWithInitial(t *testing.T) {
	assert.Equal(t, []Status{StatusScheduled, StatusInTransit, StatusCancelled, StatusDelivered}, Statuses(KindJobOrder))
	assert.Equal(t, StatusPending, Statuses(KindOrder)[0])
	assert.Len(t, Statuses(KindOrder), 5)
}

func TestFinal(t *testing.T) {
	assert.True(t, Final(KindOrder, StatusCompleted))
	assert.True(t, Final(KindServiceRequest, StatusRejected))
	assert.False(t, Final(KindPricingRequest, StatusQuoted))
}

func TestNextStatusesReturnsCopy(t *testing.T) {
	next := NextStatuses(KindOrder, StatusPending)
	next[0] = StatusClosed
	assert.Equal(t, StatusAccepted, NextStatuses(KindOrder, StatusPending)[0])
}

func TestOwnersFollowExpandChain(t *testing.T) {
	provider := &Provider{ID: "p1", Author: "m1"}
	order := &Order{ID: "o1", Customer: "c1", Provider: "p1", Expand: OrderExpand{Provider: provider}}

	job := JobOrder{ID: "j1", Order: "o1", Expand: JobOrderExpand{Order: order}}
	owner, ok := job.MerchantOwner()
	assert.True(t, ok)
	assert.Equal(t, "m1", owner)
	owner, ok = job.CustomerOwner()
	assert.True(t, ok)
	assert.Equal(t, "c1", owner)

	sr := ServiceRequest{ID: "s1", Customer: "c1", Order: "o1"}
	_, ok = sr.MerchantOwner()
	assert.False(t, ok, "missing expand must not resolve an owner")

	bare := Order{ID: "o2", Customer: "c1", Expand: OrderExpand{Provider: &Provider{ID: "p2"}}}
	_, ok = bare.MerchantOwner()
	assert.False(t, ok, "provider without author must not resolve an owner")
}

func TestStatusCounts(t *testing.T) {
	orders := []Order{{Status: StatusPending}, {Status: StatusPending}, {Status: StatusCompleted}}
	counts := StatusCounts(orders, func(o Order) Status { return o.Status })
	assert.Equal(t, map[Status]int{StatusPending: 2, StatusCompleted: 1}, counts)
}

package logistics

import "github.com/gol-logistics/gol-portal/internal/visibility"

// Visibility policies per record type.
var (
	OrderPolicy = visibility.Policy[Order]{
		Customer: Order.CustomerOwner,
		Merchant: Order.MerchantOwner,
	}
	ServiceRequestPolicy = visibility.Policy[ServiceRequest]{
		Customer: ServiceRequest.CustomerOwner,
		Merchant: ServiceRequest.MerchantOwner,
	}
	JobOrderPolicy = visibility.Policy[JobOrder]{
		Customer: JobOrder.CustomerOwner,
		Merchant: JobOrder.MerchantOwner,
	}
	PricingRequestPolicy = visibility.Policy[PricingRequest]{
		Customer: PricingRequest.CustomerOwner,
		Merchant: PricingRequest.MerchantOwner,
	}
)

package siteconfig

// PrimaryType is the overall shape of the site being provisioned.
type PrimaryType string

const (
	PrimaryWebsite PrimaryType = "website"
	PrimaryWebshop PrimaryType = "webshop"
	PrimaryHybrid  PrimaryType = "hybrid"
)

// WebsiteSubtype refines a website intent.
type WebsiteSubtype string

const (
	SubtypeCorporate WebsiteSubtype = "corporate"
	SubtypePortfolio WebsiteSubtype = "portfolio"
	SubtypeBlog      WebsiteSubtype = "blog"
	SubtypeAgency    WebsiteSubtype = "agency"
	SubtypeLanding   WebsiteSubtype = "landing"
)

// ShopModel describes who a webshop sells to.
type ShopModel string

const (
	ShopB2C    ShopModel = "b2c"
	ShopB2B    ShopModel = "b2b"
	ShopHybrid ShopModel = "hybrid"
)

// SiteIntent describes what the tenant wants built. It is immutable once a
// provisioning run starts; an absent or zero intent is a valid degenerate
// input that resolves to the minimal baseline configuration.
type SiteIntent struct {
	CompanyName  string `json:"company_name,omitempty" mapstructure:"company_name"`
	ContactEmail string `json:"contact_email,omitempty" mapstructure:"contact_email"`

	PrimaryType    PrimaryType    `json:"primary_type,omitempty" mapstructure:"primary_type"`
	WebsiteSubtype WebsiteSubtype `json:"website_subtype,omitempty" mapstructure:"website_subtype"`
	ShopModel      ShopModel      `json:"shop_model,omitempty" mapstructure:"shop_model"`
	PricingModel   string         `json:"pricing_model,omitempty" mapstructure:"pricing_model"`

	// SelectedPages are page toggles chosen in the wizard. A selected page
	// enables its implied feature even when the subtype mapping does not.
	SelectedPages []string `json:"selected_pages,omitempty" mapstructure:"selected_pages"`

	// Webshop behaviour toggles, meaningful for webshop and hybrid intents.
	RequireOrderApproval bool `json:"require_order_approval,omitempty" mapstructure:"require_order_approval"`
	HideGuestPrices      bool `json:"hide_guest_prices,omitempty" mapstructure:"hide_guest_prices"`
	EnableQuoteRequests  bool `json:"enable_quote_requests,omitempty" mapstructure:"enable_quote_requests"`
	EnableBulkOrdering   bool `json:"enable_bulk_ordering,omitempty" mapstructure:"enable_bulk_ordering"`
}

// IsCommerce reports whether the intent includes a shop surface.
func (i *SiteIntent) IsCommerce() bool {
	if i == nil {
		return false
	}
	return i.PrimaryType == PrimaryWebshop || i.PrimaryType == PrimaryHybrid
}

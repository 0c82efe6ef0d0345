package resources

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-acumatica/core"
)

var (
	Customer = Resource{
		Name:      "Customer",
		Endpoint:  "/Customer",
		KeyFields: []string{"CustomerID"},
	}
	SalesOrder = Resource{
		Name:      "SalesOrder",
		Endpoint:  "/SalesOrder",
		KeyFields: []string{"OrderType", "OrderNbr"},
		Actions: map[string]Action{
			"createShipment": {Name: "CreateShipment", Identity: IdentityLookup},
			"cancel":         {Name: "CancelSalesOrder", Identity: IdentityLookup},
		},
	}
	StockItem = Resource{
		Name:      "StockItem",
		Endpoint:  "/StockItem",
		KeyFields: []string{"InventoryID"},
	}
	Invoice = Resource{
		Name:      "Invoice",
		Endpoint:  "/Invoice",
		KeyFields: []string{"Type", "ReferenceNbr"},
		Actions: map[string]Action{
			"release": {Name: "ReleaseInvoice", Identity: IdentityLookup},
		},
	}
	Vendor = Resource{
		Name:      "Vendor",
		Endpoint:  "/Vendor",
		KeyFields: []string{"VendorID"},
	}
	PurchaseOrder = Resource{
		Name:      "PurchaseOrder",
		Endpoint:  "/PurchaseOrder",
		KeyFields: []string{"OrderType", "OrderNbr"},
		Actions: map[string]Action{
			"emailToVendor": {Name: "EmailPurchaseOrder", Identity: IdentityLookup},
		},
	}
	Payment = Resource{
		Name:      "Payment",
		Endpoint:  "/Payment",
		KeyFields: []string{"Type", "ReferenceNbr"},
		Actions: map[string]Action{
			"release": {Name: "ReleasePayment", Identity: IdentityKeys},
			"void":    {Name: "VoidPayment", Identity: IdentityKeys},
		},
	}
	Bill = Resource{
		Name:      "Bill",
		Endpoint:  "/Bill",
		KeyFields: []string{"Type", "ReferenceNbr"},
		Actions: map[string]Action{
			"release":         {Name: "ReleaseBill", Identity: IdentityKeys},
			"schedulePayment": {Name: "AddToBatch", Identity: IdentityKeys},
		},
	}
	JournalTransaction = Resource{
		Name:      "JournalTransaction",
		Endpoint:  "/JournalTransaction",
		KeyFields: []string{"Module", "BatchNbr"},
		Actions: map[string]Action{
			"release": {Name: "ReleaseJournalTransaction", Identity: IdentityKeys},
			"reverse": {Name: "ReverseJournalTransaction", Identity: IdentityKeys},
		},
	}
	Shipment = Resource{
		Name:      "Shipment",
		Endpoint:  "/Shipment",
		KeyFields: []string{"ShipmentNbr"},
		Actions: map[string]Action{
			"confirm":       {Name: "ConfirmShipment", Identity: IdentityKeys},
			"correct":       {Name: "CorrectShipment", Identity: IdentityKeys},
			"createInvoice": {Name: "CreateInvoice", Identity: IdentityKeys},
			"printLabels":   {Name: "GetLabels", Identity: IdentityKeys},
		},
	}
	BusinessAccount = Resource{
		Name:        "BusinessAccount",
		Endpoint:    "/BusinessAccount",
		KeyFields:   []string{"BusinessAccountID"},
		LookupField: "BusinessAccountID",
		Expand:      []string{"Contacts", "Attributes"},
	}
	GenericInquiry = Resource{
		Name: "GenericInquiry",
	}
)

// Builtins returns the resources shipped with the package.
func Builtins() []Resource {
	return []Resource{
		Customer,
		SalesOrder,
		StockItem,
		Invoice,
		Vendor,
		PurchaseOrder,
		Payment,
		Bill,
		JournalTransaction,
		Shipment,
		BusinessAccount,
		GenericInquiry,
	}
}

// Catalog indexes resources by name. Lookups are case-insensitive.
type Catalog struct {
	mu        sync.RWMutex
	resources map[string]Resource
}

// NewCatalog returns a catalog seeded with the built-in resources.
func NewCatalog() *Catalog {
	catalog := &Catalog{resources: map[string]Resource{}}
	for _, resource := range Builtins() {
		catalog.MustRegister(resource)
	}
	return catalog
}

// MustRegister is Register for resources declared in code. It panics when the
// descriptor is invalid.
func (c *Catalog) MustRegister(resource Resource) {
	if err := c.Register(resource); err != nil {
		panic(err)
	}
}

// Register adds or replaces a resource, e.g. a customized endpoint.
func (c *Catalog) Register(resource Resource) error {
	if c == nil {
		return core.NewBadInputError("resources: catalog is nil", nil)
	}
	key := strings.ToLower(strings.TrimSpace(resource.Name))
	if key == "" {
		return core.NewBadInputError("resources: resource name is required", nil)
	}
	if resource.Endpoint == "" && !strings.EqualFold(resource.Name, GenericInquiry.Name) {
		return core.NewBadInputError("resources: resource endpoint is required", map[string]any{
			"resource": resource.Name,
		})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[key] = resource
	return nil
}

func (c *Catalog) Lookup(name string) (Resource, bool) {
	if c == nil {
		return Resource{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	resource, ok := c.resources[strings.ToLower(strings.TrimSpace(name))]
	return resource, ok
}

// Resolve looks a resource up by name and reports a not found error when it is
// unknown.
func (c *Catalog) Resolve(name string) (Resource, error) {
	resource, ok := c.Lookup(name)
	if !ok {
		return Resource{}, core.NewNotFoundError("resources: unknown resource "+name, map[string]any{
			"resource": name,
		})
	}
	return resource, nil
}

func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.resources))
	for _, resource := range c.resources {
		out = append(out, resource.Name)
	}
	sort.Strings(out)
	return out
}

package sanity

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/gibbarosa/storefront/internal/cms"
)

// fakeClient is an in-memory CMS that understands the queries the repositories send
type fakeClient struct {
	mu        sync.Mutex
	docs      map[string]map[string]interface{}
	mutateErr error
	queryErr  error
	mutations []cms.Mutation
}

func newFakeClient() *fakeClient {
	return &fakeClient{docs: make(map[string]map[string]interface{})}
}

func (f *fakeClient) put(doc map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc["_id"].(string)] = roundTrip(doc)
}

func (f *fakeClient) Mutate(_ context.Context, mutations ...cms.Mutation) (*cms.MutateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mutations = append(f.mutations, mutations...)
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}

	resp := &cms.MutateResponse{TransactionID: "tx"}
	for _, m := range mutations {
		switch {
		case m.Create != nil:
			doc := roundTrip(*m.Create)
			id := doc["_id"].(string)
			if _, exists := f.docs[id]; exists {
				return nil, cms.ErrDocumentExists
			}
			f.docs[id] = doc
			raw, _ := json.Marshal(doc)
			resp.Results = append(resp.Results, cms.MutateResult{ID: id, Operation: "create", Document: raw})
		case m.Patch != nil:
			doc, ok := f.docs[m.Patch.ID]
			if !ok {
				return nil, &cms.APIError{StatusCode: 404, Body: "document not found"}
			}
			for k, v := range m.Patch.Set {
				doc[k] = v
			}
			resp.Results = append(resp.Results, cms.MutateResult{ID: m.Patch.ID, Operation: "update"})
		}
	}
	return resp, nil
}

func (f *fakeClient) Query(_ context.Context, query string, params map[string]interface{}, out interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queryErr != nil {
		return false, f.queryErr
	}

	var result interface{}
	switch query {
	case cms.OrderByIDQuery:
		if doc, ok := f.docs[params["id"].(string)]; ok && doc["_type"] == "order" {
			result = projectOrder(doc)
		}
	case cms.OrderByPaymentIntentQuery:
		result = f.findOrder("stripePaymentIntentId", params["paymentIntentId"])
	case cms.OrderByNumberQuery:
		result = f.findOrder("orderNumber", params["orderNumber"])
	case cms.ProductByIDQuery:
		if doc, ok := f.docs[params["id"].(string)]; ok && doc["_type"] == "product" {
			result = doc
		}
	case cms.SoldOutProductsQuery:
		var ids []string
		for id, doc := range f.docs {
			if doc["_type"] == "product" && doc["inStock"] == false {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		from, to := params["from"].(int), params["to"].(int)
		page := []interface{}{}
		for i := from; i < to && i < len(ids); i++ {
			page = append(page, f.docs[ids[i]])
		}
		result = page
	default:
		return false, fmt.Errorf("fake cms: unexpected query %q", query)
	}

	if result == nil {
		return false, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeClient) findOrder(field string, value interface{}) interface{} {
	for _, doc := range f.docs {
		if doc["_type"] == "order" && doc[field] == value {
			return projectOrder(doc)
		}
	}
	return nil
}

func projectOrder(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	var lines []map[string]interface{}
	if products, ok := doc["products"].([]interface{}); ok {
		for _, p := range products {
			item := p.(map[string]interface{})
			ref := item["product"].(map[string]interface{})["_ref"]
			lines = append(lines, map[string]interface{}{"productRef": ref, "quantity": item["quantity"]})
		}
	}
	out["products"] = lines
	return out
}

func roundTrip(v interface{}) map[string]interface{} {
	raw, _ := json.Marshal(v)
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return out
}

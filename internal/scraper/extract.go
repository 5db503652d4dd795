package scraper

import "fmt"

// extractProducts walks the fixed path data -> books -> mosaic[0] -> products
// of a landing payload. Every step is checked; any miss is reported as
// ErrUnexpectedStructure naming the step that failed, so schema drift is
// distinguishable from network problems.
func extractProducts(payload map[string]any) ([]map[string]any, error) {
	data, err := childMap(payload, "data")
	if err != nil {
		return nil, err
	}
	books, err := childMap(data, "books")
	if err != nil {
		return nil, err
	}

	mosaicValue, ok := books["mosaic"]
	if !ok {
		return nil, fmt.Errorf("%w: missing key %q", ErrUnexpectedStructure, "mosaic")
	}
	mosaic, ok := mosaicValue.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a list", ErrUnexpectedStructure, "mosaic")
	}
	if len(mosaic) == 0 {
		return nil, fmt.Errorf("%w: %q is empty", ErrUnexpectedStructure, "mosaic")
	}
	tile, ok := mosaic[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: mosaic[0] is not an object", ErrUnexpectedStructure)
	}

	productsValue, ok := tile["products"]
	if !ok {
		return nil, fmt.Errorf("%w: missing key %q", ErrUnexpectedStructure, "products")
	}
	rawProducts, ok := productsValue.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a list", ErrUnexpectedStructure, "products")
	}

	products := make([]map[string]any, 0, len(rawProducts))
	for i, raw := range rawProducts {
		product, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: products[%d] is not an object", ErrUnexpectedStructure, i)
		}
		products = append(products, product)
	}
	return products, nil
}

func childMap(parent map[string]any, key string) (map[string]any, error) {
	value, ok := parent[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing key %q", ErrUnexpectedStructure, key)
	}
	child, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an object", ErrUnexpectedStructure, key)
	}
	return child, nil
}

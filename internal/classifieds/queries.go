package classifieds

import (
	"encoding/json"
	"fmt"
)

// NodeType is the content type of a classified ad.
const NodeType = "classadnt:classifiedAd"

func propertyNamesLiteral() string {
	raw, _ := json.Marshal(PropertyNames)
	return string(raw)
}

// adNodeFields selects what MapNodeToSummary reads.
var adNodeFields = fmt.Sprintf(`uuid
          path
          name
          displayName(language: $language)
          properties(names: %s) {
            name
            value
          }
          images: property(name: "images") {
            values
            refNodes {
              path
              url
            }
          }`, propertyNamesLiteral())

// AdsByPathQuery lists the ads directly under the folder at $path.
var AdsByPathQuery = fmt.Sprintf(`query ClassifiedAdChildrenByPath($path: String!, $language: String!) {
  jcr {
    nodeByPath(path: $path) {
      children(typesFilter: { types: ["%s"] }) {
        nodes {
          %s
        }
      }
    }
  }
}`, NodeType, adNodeFields)

// AdsByUUIDQuery lists the ads directly under the folder with id $uuid.
var AdsByUUIDQuery = fmt.Sprintf(`query ClassifiedAdChildrenByUuid($uuid: String!, $language: String!) {
  jcr {
    nodeById(uuid: $uuid) {
      children(typesFilter: { types: ["%s"] }) {
        nodes {
          %s
        }
      }
    }
  }
}`, NodeType, adNodeFields)

// AdsSearchQuery finds ads anywhere below $paths matching $constraint.
var AdsSearchQuery = fmt.Sprintf(`query ClassifiedAdSearch($language: String!, $paths: [String], $constraint: InputGqlJcrNodeConstraintInput) {
  jcr {
    nodesByCriteria(
      criteria: {
        nodeType: "%s"
        language: $language
        paths: $paths
        pathType: ANCESTOR
        nodeConstraint: $constraint
      }
    ) {
      nodes {
          %s
      }
    }
  }
}`, NodeType, adNodeFields)

// adsResponse decodes the data of all three documents.
type adsResponse struct {
	JCR struct {
		NodeByPath *struct {
			Children struct {
				Nodes []RawNode `json:"nodes"`
			} `json:"children"`
		} `json:"nodeByPath"`
		NodeByID *struct {
			Children struct {
				Nodes []RawNode `json:"nodes"`
			} `json:"children"`
		} `json:"nodeById"`
		NodesByCriteria *struct {
			Nodes []RawNode `json:"nodes"`
		} `json:"nodesByCriteria"`
	} `json:"jcr"`
}

// DecodeAds extracts the raw ad nodes from the data of any ads query. A
// missing folder yields no nodes.
func DecodeAds(data json.RawMessage) ([]RawNode, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var resp adsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode classified ads: %w", err)
	}
	switch {
	case resp.JCR.NodeByPath != nil:
		return resp.JCR.NodeByPath.Children.Nodes, nil
	case resp.JCR.NodeByID != nil:
		return resp.JCR.NodeByID.Children.Nodes, nil
	case resp.JCR.NodesByCriteria != nil:
		return resp.JCR.NodesByCriteria.Nodes, nil
	}
	return nil, nil
}

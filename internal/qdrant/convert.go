package qdrant

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

func toQdrantPoint(p *Point) *qdrant.PointStruct {
	payload := make(map[string]*qdrant.Value, len(p.Payload))
	for k, v := range p.Payload {
		payload[k] = toQdrantValue(v)
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(p.ID),
		Vectors: qdrant.NewVectors(p.Vector...),
		Payload: payload,
	}
}

func toQdrantValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{}}
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int32:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(val)}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	case []string:
		values := make([]*qdrant.Value, len(val))
		for i, s := range val {
			values[i] = toQdrantValue(s)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

func fromQdrantValue(v *qdrant.Value) interface{} {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_ListValue:
		out := make([]interface{}, len(val.ListValue.GetValues()))
		for i, item := range val.ListValue.GetValues() {
			out[i] = fromQdrantValue(item)
		}
		return out
	default:
		return nil
	}
}

func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = fromQdrantValue(v)
	}
	return out
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func denseVector(vectors *qdrant.VectorsOutput) []float32 {
	if vectors == nil {
		return nil
	}
	if vec := vectors.GetVector(); vec != nil {
		if dense := vec.GetDense(); dense != nil {
			return dense.GetData()
		}
		return vec.GetData()
	}
	return nil
}

func pointIDs(ids []string) []*qdrant.PointId {
	out := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		out[i] = qdrant.NewIDUUID(id)
	}
	return out
}

func toQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil || (len(f.Must) == 0 && len(f.MustNot) == 0) {
		return nil
	}
	return &qdrant.Filter{
		Must:    toQdrantConditions(f.Must),
		MustNot: toQdrantConditions(f.MustNot),
	}
}

// toQdrantConditions sorts by field so identical filters produce identical
// requests.
func toQdrantConditions(conds []Condition) []*qdrant.Condition {
	if len(conds) == 0 {
		return nil
	}
	sorted := append([]Condition(nil), conds...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Field < sorted[j].Field })

	out := make([]*qdrant.Condition, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, toQdrantCondition(c))
	}
	return out
}

func toQdrantCondition(c Condition) *qdrant.Condition {
	match := &qdrant.Match{}
	switch v := c.Match.(type) {
	case bool:
		match.MatchValue = &qdrant.Match_Boolean{Boolean: v}
	case int:
		match.MatchValue = &qdrant.Match_Integer{Integer: int64(v)}
	case int64:
		match.MatchValue = &qdrant.Match_Integer{Integer: v}
	case string:
		match.MatchValue = &qdrant.Match_Keyword{Keyword: v}
	default:
		match.MatchValue = &qdrant.Match_Keyword{Keyword: fmt.Sprintf("%v", v)}
	}
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{Key: c.Field, Match: match},
		},
	}
}

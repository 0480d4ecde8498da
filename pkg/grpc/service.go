package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/orderdesk/pkg/models"
	"github.com/example/orderdesk/pkg/wizard"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// The order service speaks google.protobuf.Struct on the wire. Each Struct
// holds the protojson form of one of the payload types below.
const (
	OrderServiceName  = "orderdesk.OrderService"
	SubmitOrderMethod = "/" + OrderServiceName + "/SubmitOrder"
	GetOrderMethod    = "/" + OrderServiceName + "/GetOrder"
	GetHistoryMethod  = "/" + OrderServiceName + "/GetOrderHistory"
	GetPolicyMethod   = "/" + OrderServiceName + "/GetPolicy"
)

// SubmitOrderRequest is a finished draft flattened to ids and lines.
type SubmitOrderRequest struct {
	CustomerID     string             `json:"customer_id"`
	RestaurantID   string             `json:"restaurant_id"`
	MenuID         string             `json:"menu_id"`
	Items          []models.OrderItem `json:"items"`
	PaymentMethod  string             `json:"payment_method"`
	DeliveryOption string             `json:"delivery_option"`
	Allergies      string             `json:"allergies"`
	DeliveryNotes  string             `json:"delivery_notes"`
}

func NewSubmitOrderRequest(d wizard.Draft) SubmitOrderRequest {
	req := SubmitOrderRequest{
		Items:          make([]models.OrderItem, 0, len(d.Cart)),
		PaymentMethod:  d.PaymentMethod,
		DeliveryOption: d.DeliveryOption,
		Allergies:      d.Allergies,
		DeliveryNotes:  d.DeliveryNotes,
	}
	if d.Customer != nil {
		req.CustomerID = d.Customer.ID
	}
	if d.Restaurant != nil {
		req.RestaurantID = d.Restaurant.ID
	}
	if d.Menu != nil {
		req.MenuID = d.Menu.ID
	}
	for _, l := range d.Cart {
		req.Items = append(req.Items, models.OrderItem{
			LineID:   l.ID,
			ItemID:   l.Item.ID,
			Name:     l.Item.Name,
			Quantity: l.Quantity,
			Price:    l.Item.Price,
			Notes:    l.Notes,
		})
	}
	return req
}

type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

// AuditEntry is one recorded action on an order.
type AuditEntry struct {
	Service   string                 `json:"service"`
	Action    string                 `json:"action"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// OrderHistory is an order with its audit trail, newest entry first.
type OrderHistory struct {
	Order   models.OrderConfirmation `json:"order"`
	Entries []AuditEntry             `json:"entries"`
}

// GetPolicyRequest asks for the tax rate and the options the service accepts.
type GetPolicyRequest struct{}

func encode(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to build struct: %w", err)
	}
	return s, nil
}

func decode(s *structpb.Struct, v interface{}) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to read struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// OrderServiceServer is implemented by OrderServer.
type OrderServiceServer interface {
	SubmitOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrderHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPolicy(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: OrderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitOrder", Handler: submitOrderHandler},
		{MethodName: "GetOrder", Handler: getOrderHandler},
		{MethodName: "GetOrderHistory", Handler: getOrderHistoryHandler},
		{MethodName: "GetPolicy", Handler: getPolicyHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func submitOrderHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).SubmitOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitOrderMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderServiceServer).SubmitOrder(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getOrderHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetOrderMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderServiceServer).GetOrder(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getOrderHistoryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).GetOrderHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetHistoryMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderServiceServer).GetOrderHistory(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getPolicyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).GetPolicy(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetPolicyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderServiceServer).GetPolicy(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

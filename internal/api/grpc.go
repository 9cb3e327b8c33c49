package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/victornm/openquiz/internal/domain"
	"github.com/victornm/openquiz/internal/errors"
	"github.com/victornm/openquiz/internal/quiz"
	"github.com/victornm/openquiz/internal/submission"
)

// CodecName is the content subtype of every QuizService call. Messages are
// plain Go structs encoded as JSON.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

type (
	CreateQuizRequest struct {
		Title     string           `json:"title"`
		Thumbnail string           `json:"thumbnail,omitempty"`
		Questions []*QuestionInput `json:"questions"`
	}

	QuestionInput struct {
		Text          string   `json:"text"`
		Images        []string `json:"images,omitempty"`
		Answers       []string `json:"answers"`
		CorrectAnswer *int32   `json:"correct_answer"`
	}

	CreateQuizResponse struct {
		QuizId string `json:"quiz_id"`
	}

	GetQuizRequest struct {
		QuizId string `json:"quiz_id"`
	}

	GetQuizResponse struct {
		Quiz *Quiz `json:"quiz"`
	}

	Quiz struct {
		Id        string                 `json:"id"`
		Title     string                 `json:"title"`
		Thumbnail string                 `json:"thumbnail,omitempty"`
		Questions []*Question            `json:"questions"`
		CreatedAt *timestamppb.Timestamp `json:"created_at"`
	}

	// Question leaves the correct answer out, like every read of a quiz.
	Question struct {
		Text    string   `json:"text"`
		Images  []string `json:"images,omitempty"`
		Answers []string `json:"answers"`
	}

	SubmitRequest struct {
		QuizId string `json:"quiz_id"`
		// Answers holds one entry per question, null when unanswered.
		Answers []*int32 `json:"answers"`
	}

	SubmitResponse struct {
		Score      int32             `json:"score"`
		Total      int32             `json:"total"`
		Percentile int32             `json:"percentile"`
		Results    []*QuestionResult `json:"results"`
	}

	QuestionResult struct {
		QuestionIndex int32  `json:"question_index"`
		UserAnswer    *int32 `json:"user_answer"`
		CorrectAnswer int32  `json:"correct_answer"`
		IsCorrect     bool   `json:"is_correct"`
	}

	GetStatsRequest struct {
		QuizId string `json:"quiz_id"`
	}

	GetStatsResponse struct {
		TotalCount int64 `json:"total_count"`
	}
)

type QuizServiceServer interface {
	CreateQuiz(context.Context, *CreateQuizRequest) (*CreateQuizResponse, error)
	GetQuiz(context.Context, *GetQuizRequest) (*GetQuizResponse, error)
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*GetStatsResponse, error)
}

const serviceName = "openquiz.v1.QuizService"

var quizServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*QuizServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateQuiz", Handler: unaryHandler("CreateQuiz", QuizServiceServer.CreateQuiz)},
		{MethodName: "GetQuiz", Handler: unaryHandler("GetQuiz", QuizServiceServer.GetQuiz)},
		{MethodName: "Submit", Handler: unaryHandler("Submit", QuizServiceServer.Submit)},
		{MethodName: "GetStats", Handler: unaryHandler("GetStats", QuizServiceServer.GetStats)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterQuizServiceServer(s grpc.ServiceRegistrar, srv QuizServiceServer) {
	s.RegisterService(&quizServiceDesc, srv)
}

// unaryHandler adapts a typed server method to a grpc.MethodDesc handler.
func unaryHandler[Req, Resp any](method string, call func(QuizServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + serviceName + "/" + method

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(QuizServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(QuizServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// QuizServiceClient calls a QuizService over a connection, always with the
// JSON codec.
type QuizServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewQuizServiceClient(cc grpc.ClientConnInterface) *QuizServiceClient {
	return &QuizServiceClient{cc: cc}
}

func (c *QuizServiceClient) CreateQuiz(ctx context.Context, in *CreateQuizRequest, opts ...grpc.CallOption) (*CreateQuizResponse, error) {
	out := new(CreateQuizResponse)
	if err := c.invoke(ctx, "CreateQuiz", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QuizServiceClient) GetQuiz(ctx context.Context, in *GetQuizRequest, opts ...grpc.CallOption) (*GetQuizResponse, error) {
	out := new(GetQuizResponse)
	if err := c.invoke(ctx, "GetQuiz", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QuizServiceClient) Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error) {
	out := new(SubmitResponse)
	if err := c.invoke(ctx, "Submit", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QuizServiceClient) GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*GetStatsResponse, error) {
	out := new(GetStatsResponse)
	if err := c.invoke(ctx, "GetStats", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QuizServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

// Handlers return converted errors so clients see the code and message
// without the internal cause.

func (a *API) CreateQuiz(ctx context.Context, req *CreateQuizRequest) (*CreateQuizResponse, error) {
	in := quiz.CreateQuizRequest{
		Title:     req.Title,
		Thumbnail: req.Thumbnail,
		Questions: make([]quiz.QuestionInput, 0, len(req.Questions)),
	}
	for _, q := range req.Questions {
		if q == nil {
			return nil, errors.InvalidArgumentf("question must not be null")
		}
		qi := quiz.QuestionInput{
			Text:    q.Text,
			Images:  q.Images,
			Answers: q.Answers,
		}
		if q.CorrectAnswer != nil {
			i := int(*q.CorrectAnswer)
			qi.CorrectAnswer = &i
		}
		in.Questions = append(in.Questions, qi)
	}

	q, err := a.qs.CreateQuiz(ctx, in)
	if err != nil {
		return nil, errors.Convert(err)
	}

	return &CreateQuizResponse{QuizId: q.ID}, nil
}

func (a *API) GetQuiz(ctx context.Context, req *GetQuizRequest) (*GetQuizResponse, error) {
	q, err := a.qs.GetQuiz(ctx, quiz.GetQuizRequest{QuizID: req.QuizId})
	if err != nil {
		return nil, errors.Convert(err)
	}

	resp := &GetQuizResponse{
		Quiz: &Quiz{
			Id:        q.ID,
			Title:     q.Title,
			Thumbnail: q.Thumbnail,
			Questions: make([]*Question, 0, len(q.Questions)),
			CreatedAt: timestamppb.New(q.CreatedAt),
		},
	}
	for _, qq := range q.Questions {
		resp.Quiz.Questions = append(resp.Quiz.Questions, &Question{
			Text:    qq.Text,
			Images:  qq.Images,
			Answers: qq.Answers,
		})
	}

	return resp, nil
}

func (a *API) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	answers := make([]domain.Answer, 0, len(req.Answers))
	for _, ans := range req.Answers {
		if ans == nil {
			answers = append(answers, domain.NoAnswer)
			continue
		}
		answers = append(answers, domain.AnswerOf(int(*ans)))
	}

	sr, err := a.ss.Submit(ctx, submission.SubmitRequest{
		QuizID:  req.QuizId,
		Answers: answers,
	})
	if err != nil {
		return nil, errors.Convert(err)
	}

	resp := &SubmitResponse{
		Score:      int32(sr.Score),
		Total:      int32(sr.Total),
		Percentile: int32(sr.Percentile),
		Results:    make([]*QuestionResult, 0, len(sr.Results)),
	}
	for _, r := range sr.Results {
		res := &QuestionResult{
			QuestionIndex: int32(r.QuestionIndex),
			CorrectAnswer: int32(r.CorrectAnswer),
			IsCorrect:     r.IsCorrect,
		}
		if r.UserAnswer.Valid {
			ua := int32(r.UserAnswer.Index)
			res.UserAnswer = &ua
		}
		resp.Results = append(resp.Results, res)
	}

	return resp, nil
}

func (a *API) GetStats(ctx context.Context, req *GetStatsRequest) (*GetStatsResponse, error) {
	st, err := a.qs.GetStats(ctx, quiz.GetStatsRequest{QuizID: req.QuizId})
	if err != nil {
		return nil, errors.Convert(err)
	}

	return &GetStatsResponse{TotalCount: st.TotalCount}, nil
}

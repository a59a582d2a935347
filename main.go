package main

import (
	"fmt"
	"log"
	"os"

	"github.com/khangkhangg/AI-travel-sub002/routes"
	"github.com/khangkhangg/AI-travel-sub002/storage"
	"github.com/khangkhangg/AI-travel-sub002/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()
	storage.InitializeDB()
	storage.InitializeS3()
	storage.InitializeRedis()

	app := iris.New()
	app.Validator = validator.New()

	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
	}

	businesses := app.Party("/api/businesses")
	{
		businesses.Use(accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
		businesses.Post("/", routes.CreateBusiness)
		businesses.Get("/mine", routes.GetMyBusiness)
		businesses.Get("/{id:uint}", routes.GetBusiness)
	}

	trips := app.Party("/api/trips")
	{
		trips.Use(accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
		trips.Post("/", routes.CreateTrip)
		trips.Get("/", routes.ListMyTrips)
		trips.Get("/{id:uint}", routes.GetTrip)
		trips.Post("/{id:uint}/activities", routes.CreateTripActivity)
		trips.Post("/{id:uint}/needs", routes.CreateServiceNeed)
		trips.Get("/{id:uint}/feed", routes.ListTripFeed)

		trips.Post("/{id:uint}/proposals", routes.SubmitProposal)
		trips.Get("/{id:uint}/proposals", routes.ListTripProposals)
		trips.Patch("/{id:uint}/proposals/{proposalID:uint}/status", routes.TransitionProposal)
		trips.Delete("/{id:uint}/proposals/{proposalID:uint}", routes.DeleteProposal)
	}

	proposals := app.Party("/api/proposals")
	{
		proposals.Use(accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
		proposals.Get("/mine", routes.ListMyProposals)
	}

	uploads := app.Party("/api/uploads")
	{
		uploads.Use(accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
		uploads.Post("/logo", routes.UploadLogo)
	}

	admin := app.Party("/api/admin")
	{
		admin.Use(accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
		admin.Get("/businesses", routes.AdminListBusinesses)
		admin.Patch("/businesses/{id:uint}/status", routes.AdminUpdateBusinessStatus)
	}

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

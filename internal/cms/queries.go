package cms

const orderProjection = `{
  _id,
  orderNumber,
  stripePaymentIntentId,
  stripeCheckoutSessionId,
  stripeCustomerId,
  customerName,
  email,
  currency,
  totalPrice,
  amountDiscount,
  status,
  shippingMethod,
  notes,
  shippingAddress,
  orderDate,
  "products": products[]{ "productRef": product._ref, quantity }
}`

const productProjection = `{
  _id,
  name,
  pricing,
  "slug": slug.current,
  "imageRef": images[0].asset._ref,
  inStock
}`

// OrderByIDQuery fetches one order by document id
const OrderByIDQuery = `*[_type == "order" && _id == $id][0]` + orderProjection

// OrderByPaymentIntentQuery fetches the order created for a payment intent
const OrderByPaymentIntentQuery = `*[_type == "order" && stripePaymentIntentId == $paymentIntentId][0]` + orderProjection

// OrderByNumberQuery fetches an order by its customer-facing number
const OrderByNumberQuery = `*[_type == "order" && orderNumber == $orderNumber][0]` + orderProjection

// ProductByIDQuery fetches one product
const ProductByIDQuery = `*[_type == "product" && _id == $id][0]` + productProjection

// SoldOutProductsQuery pages through unavailable products ordered by id
const SoldOutProductsQuery = `*[_type == "product" && inStock == false] | order(_id asc) [$from...$to]` + productProjection
